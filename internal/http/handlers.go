package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"operaciones/internal/controller"
	"operaciones/internal/core"
	"operaciones/internal/log"
	"operaciones/internal/middleware/security"
)

type indexView struct {
	Table tableView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	sess := s.sessions.get(w, r)
	_, _ = sess.list.Start(r.Context())

	b := NewHTMXResponse()
	if err := b.Render(s.templates, "index.html", indexView{Table: newTableView(sess.list.Snapshot())}); err != nil {
		s.renderFailed(w, r, "index.html", err)
		return
	}
	b.Notify(fb).Write(w)
}

// handleOperations renders the table for a search, a clear or a reload. A
// search overtaken by a newer one from the same session answers 204 so the
// browser keeps what it has.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	ctx := r.Context()
	sess := s.sessions.get(w, r)
	q := r.URL.Query()

	var err error
	switch {
	case q.Get("clear") == "1":
		_, err = sess.list.Clear(ctx)
	case q.Get("reload") == "1":
		_, err = sess.list.Reload(ctx)
	default:
		search := sanitizeInput(q.Get("search"))
		_, err = sess.list.Search(ctx, search)
	}
	if errors.Is(err, controller.ErrSuperseded) || errors.Is(err, context.Canceled) {
		if s.metrics != nil && errors.Is(err, controller.ErrSuperseded) {
			s.metrics.SearchesSuperseded.Inc()
		}
		log.FromContext(ctx).Debug("Search superseded", log.FieldSearch, q.Get("search"))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeTable(w, r, sess, fb, http.StatusOK)
}

func (s *Server) handleDeleteOperation(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	id, err := parseOperationID(r.PathValue("id"))
	if err != nil {
		BadRequestError("Invalid operation id").Write(w)
		return
	}
	sess := s.sessions.get(w, r)

	switch sess.list.Delete(r.Context(), id) {
	case controller.DeleteDeclined:
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeTable(w, r, sess, fb, http.StatusOK)
	}
}

func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, sess *session, fb *feedback, status int) {
	b := NewHTMXResponse().Status(status)
	if err := b.Render(s.templates, "operations_table", newTableView(sess.list.Snapshot())); err != nil {
		s.renderFailed(w, r, "operations_table", err)
		return
	}
	b.Notify(fb).Write(w)
}

func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	sess := s.sessions.get(w, r)
	err := sess.form.New(r.Context())
	s.writeForm(w, r, sess, fb, err)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	id, err := parseOperationID(r.PathValue("id"))
	if err != nil {
		BadRequestError("Invalid operation id").Write(w)
		return
	}
	sess := s.sessions.get(w, r)
	err = sess.form.Load(r.Context(), id)
	s.writeForm(w, r, sess, fb, err)
}

// handleSaveOperation submits the posted draft. Field errors re-render the
// form with 422; a successful save empties the form panel and reloads the
// table.
func (s *Server) handleSaveOperation(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	ctx := r.Context()

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request body").Write(w)
		return
	}
	draft, err := parser.Draft()
	if err != nil {
		BadRequestError("Invalid operation id").Write(w)
		return
	}

	sess := s.sessions.get(w, r)
	form := sess.form
	switch form.State() {
	case controller.FormEditing, controller.FormSubmitting:
	default:
		// The session lost its form (expired or already saved): open it again.
		if err := s.openForm(ctx, form, draft.ID); err != nil {
			s.writeForm(w, r, sess, fb, err)
			return
		}
	}
	form.SetDraft(draft)

	existing := sess.list.Snapshot()
	if existing.LoadedAt.IsZero() {
		if _, err := sess.list.Start(ctx); err != nil {
			s.writeForm(w, r, sess, fb, err)
			return
		}
		existing = sess.list.Snapshot()
	}

	if _, err := form.Submit(ctx, existing.Items); err != nil {
		s.writeForm(w, r, sess, fb, err)
		return
	}
	NewHTMXResponse().
		TriggerOperationsReload().
		TriggerFormClose().
		Notify(fb).
		Write(w)
}

func (s *Server) openForm(ctx context.Context, form *controller.FormController, id int64) error {
	if id > 0 {
		return form.Load(ctx, id)
	}
	return form.New(ctx)
}

// writeForm renders the form panel. A nil err answers 200; otherwise the
// status comes from statusFor.
func (s *Server) writeForm(w http.ResponseWriter, r *http.Request, sess *session, fb *feedback, err error) {
	status := statusFor(err)
	msg := formErrorMessage(err)
	if err != nil {
		log.FromContext(r.Context()).Debug("Form request failed",
			log.FieldStatusCode, status, log.FieldError, err)
	}

	b := NewHTMXResponse().Status(status)
	if rerr := b.Render(s.templates, "operation_form", newFormView(sess.form, msg)); rerr != nil {
		s.renderFailed(w, r, "operation_form", rerr)
		return
	}
	b.Notify(fb).Write(w)
}

func formErrorMessage(err error) string {
	var verr *core.ValidationError
	switch {
	case err == nil, errors.As(err, &verr):
		return ""
	case errors.Is(err, core.ErrDuplicate):
		return controller.MsgDuplicate
	case errors.Is(err, controller.ErrSubmitInProgress):
		return "The operation is already being saved"
	case errors.Is(err, controller.ErrFormNotReady):
		return "The form is not ready yet, try again"
	default:
		return controller.MsgSaveFailed
	}
}

// handleEndDate previews the end date from the form fields in the query.
func (s *Server) handleEndDate(w http.ResponseWriter, r *http.Request) {
	d := newQueryParser(r.URL.Query())
	draft, _ := d.Draft()

	b := NewHTMXResponse()
	if err := b.Render(s.templates, "end_date", endDateText(draft.EndDate())); err != nil {
		s.renderFailed(w, r, "end_date", err)
		return
	}
	b.Write(w)
}

func newQueryParser(values url.Values) *RequestBodyParser {
	return &RequestBodyParser{formData: values, parsed: true}
}

func (s *Server) handleCancelForm(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	sess := s.sessions.get(w, r)
	closed, err := sess.form.Cancel(r.Context())
	if err != nil {
		InternalServerError("Could not cancel the form").Write(w)
		return
	}
	if !closed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	NewHTMXResponse().TriggerFormClose().Notify(fb).Write(w)
}

// handleChart summarises the session's current list by start month.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	r, fb := withFeedback(r)
	sess := s.sessions.get(w, r)
	snap := sess.list.Snapshot()
	if snap.LoadedAt.IsZero() {
		_, _ = sess.list.Start(r.Context())
		snap = sess.list.Snapshot()
	}

	b := NewHTMXResponse()
	view := newChartView(snap.Search, core.AggregateByMonth(snap.Items))
	if err := b.Render(s.templates, "chart", view); err != nil {
		s.renderFailed(w, r, "chart", err)
		return
	}
	b.Notify(fb).Write(w)
}

type chartResponse struct {
	Search string   `json:"search"`
	Labels []string `json:"labels"`
	Counts []int    `json:"counts"`
	Total  int      `json:"total"`
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	search := sanitizeInput(r.URL.Query().Get("search"))
	ops, err := s.repo.List(r.Context(), search)
	if err != nil {
		log.FromContext(r.Context()).Error("Chart data failed", log.FieldSearch, search, log.FieldError, err)
		writeJSON(w, statusFor(err), map[string]string{"error": controller.MsgLoadFailed})
		return
	}
	series := core.AggregateByMonth(ops)
	writeJSON(w, http.StatusOK, chartResponse{
		Search: search,
		Labels: series.Labels,
		Counts: series.Counts,
		Total:  series.Total(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status           string                  `json:"status"`
	Templates        bool                    `json:"templates"`
	Backend          string                  `json:"backend"`
	Sessions         int                     `json:"sessions"`
	RateLimitClients int                     `json:"rate_limit_clients"`
	Security         security.DetectionStats `json:"security"`
	UptimeSeconds    int64                   `json:"uptime_seconds"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out := readiness{
		Status:           "ready",
		Templates:        s.templates != nil,
		Backend:          "ok",
		Sessions:         s.sessions.size(),
		RateLimitClients: s.rateLimiter.ActiveClients(),
		Security:         s.detector.Stats(),
		UptimeSeconds:    int64(time.Since(s.started).Seconds()),
	}
	status := http.StatusOK
	if _, err := s.repo.ListCreditTypes(ctx); err != nil {
		out.Backend = err.Error()
		out.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if !out.Templates {
		out.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.FromContext(r.Context()).Error("Template render failed",
		log.FieldComponent, log.ComponentTemplate, "template", name, log.FieldError, err)
	InternalServerError("Something went wrong").Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
