package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		BodyHTML([]byte("test")).
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerOperationsReload().
		TriggerFormClose().
		TriggerSuccessNotification("Operation created").
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	for _, name := range []string{EventOperationsReload, EventFormClose, EventShowNotification} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}
	var note map[string]any
	if err := json.Unmarshal(triggers[EventShowNotification], &note); err != nil {
		t.Fatalf("single notification must be an object: %v", err)
	}
	if note["type"] != "success" || note["message"] != "Operation created" {
		t.Errorf("unexpected notification %v", note)
	}
}

func TestHTMXResponseBuilder_SeveralNotificationsAreAList(t *testing.T) {
	w := httptest.NewRecorder()

	fb := &feedback{}
	fb.add(NotificationError, "Could not delete the operation")
	fb.add(NotificationSuccess, "Operation deleted")
	NewHTMXResponse().Notify(fb).Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	var notes []map[string]any
	if err := json.Unmarshal(triggers[EventShowNotification], &notes); err != nil {
		t.Fatalf("notifications must be a list: %v", err)
	}
	if len(notes) != 2 || notes[0]["type"] != "error" || notes[1]["duration"] != float64(3000) {
		t.Errorf("unexpected notifications %v", notes)
	}
	if len(fb.drain()) != 0 {
		t.Error("Notify must drain the feedback")
	}
}

func TestHTMXResponseBuilder_NoTriggersNoHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Notify(nil).Write(w)
	if w.Header().Get("HX-Trigger") != "" {
		t.Errorf("unexpected HX-Trigger %q", w.Header().Get("HX-Trigger"))
	}
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("Retry-After", "60").
		Status(http.StatusTooManyRequests).
		Write(w)

	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Custom header not set")
	}
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestHTMXResponseBuilder_Render(t *testing.T) {
	tmpl := template.Must(template.New("row").Parse(`<td>{{.}}</td>`))

	b := NewHTMXResponse()
	if err := b.Render(tmpl, "row", "<b>Ana</b>"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	w := httptest.NewRecorder()
	b.Write(w)
	if w.Body.String() != "<td>&lt;b&gt;Ana&lt;/b&gt;</td>" {
		t.Errorf("Body = %q", w.Body.String())
	}

	if err := NewHTMXResponse().Render(tmpl, "missing", nil); err == nil {
		t.Error("expected error for unknown template")
	}
	if err := NewHTMXResponse().Render(nil, "row", nil); err == nil {
		t.Error("expected error without templates")
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Invalid input"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error">Invalid input</div>`,
		},
		{
			name:       "internal server error",
			builder:    InternalServerError("Something broke"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `<div class="error">Something broke</div>`,
		},
		{
			name:       "not found",
			builder:    NotFoundError("Operation not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `<div class="error">Operation not found</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("Error response did not properly escape HTML entities")
	}
}
