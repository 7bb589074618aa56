package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"operaciones/internal/api"
	"operaciones/internal/controller"
	"operaciones/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"operacionID": 7, "identificacion": " 0912 ", "monto": 42.5, "aprobado": true}`
	req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	d, err := parser.Draft()
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if d.ID != 7 || d.Identification != "0912" || d.Amount != "42.5" || !d.Approved {
		t.Errorf("unexpected draft %+v", d)
	}
}

func TestRequestBodyParser_JSONWithLeadingWhitespace(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{"declared json", "application/json; charset=utf-8"},
		{"no content type", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "\n\t  {\"nombre\": \"Ana\", \"plazoMeses\": 12}\n"
			req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			parser := NewRequestBodyParser(req)
			if err := parser.Parse(); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !parser.IsJSON() {
				t.Fatal("Expected IsJSON() to be true")
			}
			d, _ := parser.Draft()
			if d.Name != "Ana" || d.TermMonths != "12" {
				t.Errorf("unexpected draft %+v", d)
			}
		})
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "identificacion=0912&nombre=Ana+Luc%C3%ADa&monto=1.500%2C50&aprobado=on"
	req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	d, err := parser.Draft()
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if d.ID != 0 || d.Name != "Ana Lucía" || d.Amount != "1.500,50" || !d.Approved {
		t.Errorf("unexpected draft %+v", d)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_BadInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(`{"broken"`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Error("expected error for malformed JSON")
	}

	req = httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader("operacionID=abc"))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := parser.Draft(); !errors.Is(err, errInvalidID) {
		t.Errorf("expected errInvalidID, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&core.ValidationError{Fields: map[string]string{"nombre": "Required"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("create: %w", api.ErrInvalid), http.StatusUnprocessableEntity},
		{core.ErrDuplicate, http.StatusConflict},
		{api.ErrConflict, http.StatusConflict},
		{controller.ErrSubmitInProgress, http.StatusConflict},
		{fmt.Errorf("load: %w", api.ErrNotFound), http.StatusNotFound},
		{errInvalidID, http.StatusBadRequest},
		{&api.RemoteError{Op: "list", Err: errors.New("refused")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestConfirmedByUser(t *testing.T) {
	tests := []struct {
		target string
		prompt string
		want   bool
	}{
		{"/operations/1?confirmed=true", "", true},
		{"/operations/1", "sí", true},
		{"/operations/1", "yes", true},
		{"/operations/1", "no", false},
		{"/operations/1?confirmed=false", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodDelete, tt.target, nil)
		if tt.prompt != "" {
			req.Header.Set("HX-Prompt", tt.prompt)
		}
		req, _ = withFeedback(req)
		ok, err := requestConfirmer{}.Confirm(req.Context(), "?")
		if err != nil || ok != tt.want {
			t.Errorf("%s prompt=%q: got %v, want %v", tt.target, tt.prompt, ok, tt.want)
		}
	}

	if ok, _ := (requestConfirmer{}).Confirm(context.Background(), "?"); ok {
		t.Error("no request feedback must never confirm")
	}
}

func TestNewChartViewScalesBars(t *testing.T) {
	v := newChartView("", core.MonthlySeries{
		Labels: []string{"2024-01", "2024-02", "2024-03"},
		Counts: []int{100, 1, 0},
	})
	if v.Total != 101 || len(v.Bars) != 3 {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.Bars[0].Width != 100 || v.Bars[1].Width != 2 || v.Bars[2].Width != 0 {
		t.Errorf("unexpected widths %+v", v.Bars)
	}
}

func TestEndDatePreviewFromQuery(t *testing.T) {
	d, _ := newQueryParser(url.Values{
		core.FieldStartDate:  {"2024-01-31"},
		core.FieldTermMonths: {"1"},
	}).Draft()
	if end, ok := d.EndDate(); !ok || end.FormValue() != "2024-03-02" {
		t.Errorf("end date = %v %v", end, ok)
	}
}
