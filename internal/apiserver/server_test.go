package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"operaciones/internal/api"
	"operaciones/internal/api/memory"
	"operaciones/internal/api/rest"
	"operaciones/internal/core"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
	"operaciones/internal/storage"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func newTestServer(t *testing.T, repo api.Repository) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(repo, quietLogger(), metrics.New()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

const validBody = `{"identificacion":"0912","nombre":"Ana","tipoCredito":"CONS","monto":1000,"fechaInicio":"2024-01-31T00:00:00.000Z","plazoMeses":1,"aprobado":false}`

func TestOperationsLifecycle(t *testing.T) {
	srv := newTestServer(t, memory.New(memory.DefaultCreditTypes))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/Operaciones", validBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var created core.Operation
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Consumo", created.CreditType)
	assert.Equal(t, "2024-03-02", created.EndDate.FormValue())

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/Operaciones?search=an", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []core.Operation
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Len(t, list, 1)

	update := strings.Replace(validBody, `"Ana"`, `"Ana María"`, 1)
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/Operaciones/1", update)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "Ana María")

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/Operaciones/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/Operaciones/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"status":"Error"`)
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t, memory.New(memory.DefaultCreditTypes))
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/Operaciones", validBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
		contains string
	}{
		{"duplicate identification", http.MethodPost, "/api/Operaciones", validBody, http.StatusConflict, "identification"},
		{"unknown credit type", http.MethodPost, "/api/Operaciones",
			strings.Replace(strings.Replace(validBody, "CONS", "XYZ", 1), "0912", "0913", 1), http.StatusUnprocessableEntity, "credit type"},
		{"missing fields", http.MethodPost, "/api/Operaciones", `{"monto":-1,"fechaInicio":"2024-01-01"}`, http.StatusUnprocessableEntity, "identificacion"},
		{"missing start date", http.MethodPost, "/api/Operaciones",
			`{"identificacion":"X","nombre":"Y","tipoCredito":"CONS","monto":1,"plazoMeses":1}`, http.StatusUnprocessableEntity, "fechaInicio"},
		{"malformed json", http.MethodPost, "/api/Operaciones", `{`, http.StatusBadRequest, "invalid request body"},
		{"bad id", http.MethodGet, "/api/Operaciones/abc", "", http.StatusBadRequest, "invalid operation id"},
		{"id mismatch", http.MethodPut, "/api/Operaciones/1",
			strings.Replace(validBody, `{`, `{"operacionID":7,`, 1), http.StatusBadRequest, "does not match"},
		{"update missing", http.MethodPut, "/api/Operaciones/99", validBody, http.StatusNotFound, "not found"},
		{"delete missing", http.MethodDelete, "/api/Operaciones/99", "", http.StatusNotFound, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.expected, resp.StatusCode, body)
			assert.Contains(t, body, tt.contains)
		})
	}
}

func TestCreditTypesAndHealth(t *testing.T) {
	srv := newTestServer(t, memory.New(memory.DefaultCreditTypes))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/TipoCredito", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `{"codigo":"CONS","nombre":"Consumo"}`)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, StatusOK)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `operaciones_http_requests_total{code="200",method="GET",route="/api/TipoCredito"}`)
}

// The REST client and the reference server must agree on the contract.
func TestRESTClientRoundTrip(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	srv := newTestServer(t, repo)
	client, err := rest.New(srv.URL+"/api", rest.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	types, err := client.ListCreditTypes(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, types)

	op := core.Operation{
		Identification: "1700000001",
		Name:           "Bruno",
		CreditType:     "VEH",
		Amount:         15000,
		StartDate:      core.NewDate(2024, 3, 15),
		TermMonths:     24,
	}
	created, err := client.Create(ctx, op)
	require.NoError(t, err)
	assert.Equal(t, "Vehicular", created.CreditType)
	assert.Equal(t, "2026-03-15", created.EndDate.FormValue())
	assert.False(t, created.RegisteredAt.IsZero())

	_, err = client.Create(ctx, op)
	assert.ErrorIs(t, err, api.ErrConflict)

	op.CreditType = "Hipotecario"
	op.Approved = true
	updated, err := client.Update(ctx, created.ID, op)
	require.NoError(t, err)
	assert.Equal(t, "Hipotecario", updated.CreditType)
	assert.True(t, updated.Approved)

	found, err := client.List(ctx, "bru")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, client.Delete(ctx, created.ID))
	_, err = client.Get(ctx, created.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestRecovererReturns500(t *testing.T) {
	s := New(panicRepo{memory.New(nil)}, quietLogger(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/Operaciones", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicRepo struct{ api.Repository }

func (panicRepo) List(context.Context, string) ([]core.Operation, error) {
	panic("boom")
}
