package apiserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"operaciones/internal/api"
	"operaciones/internal/core"
	"operaciones/internal/log"
)

// operationRequest is the body of POST and PUT.
type operationRequest struct {
	ID             int64     `json:"operacionID"`
	Identification string    `json:"identificacion" validate:"required,max=32"`
	Name           string    `json:"nombre" validate:"required,max=120"`
	CreditType     string    `json:"tipoCredito" validate:"required"`
	Amount         float64   `json:"monto" validate:"gte=0"`
	StartDate      core.Date `json:"fechaInicio"`
	TermMonths     int       `json:"plazoMeses" validate:"gte=0,lte=600"`
	Approved       bool      `json:"aprobado"`
}

func (req operationRequest) operation() core.Operation {
	return core.Operation{
		Identification: req.Identification,
		Name:           req.Name,
		CreditType:     req.CreditType,
		Amount:         req.Amount,
		StartDate:      req.StartDate,
		TermMonths:     req.TermMonths,
		Approved:       req.Approved,
	}
}

func (s *Server) listOperations(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	ops, err := s.repo.List(r.Context(), search)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	log.FromContext(r.Context()).Debug("Operations listed",
		log.FieldSearch, search,
		log.FieldCount, len(ops))
	render.JSON(w, r, ops)
}

func (s *Server) getOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	op, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	render.JSON(w, r, op)
}

func (s *Server) createOperation(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	created, err := s.repo.Create(r.Context(), req.operation())
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogOperationSaved(r.Context(), log.OpCreate,
		created.ID, created.Identification, created.CreditType, created.Amount, created.TermMonths)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created)
}

func (s *Server) updateOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.ID != 0 && req.ID != id {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorBody("operacionID does not match the URL"))
		return
	}
	updated, err := s.repo.Update(r.Context(), id, req.operation())
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogOperationSaved(r.Context(), log.OpUpdate,
		updated.ID, updated.Identification, updated.CreditType, updated.Amount, updated.TermMonths)
	render.JSON(w, r, updated)
}

func (s *Server) deleteOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCreditTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.repo.ListCreditTypes(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	render.JSON(w, r, types)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.repo.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, errorBody("storage unavailable"))
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": StatusOK})
}

func (s *Server) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorBody("invalid operation id"))
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (operationRequest, bool) {
	logger := log.FromContext(r.Context())

	var req operationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		logger.Warn("Failed to decode request body", log.FieldError, err.Error())
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorBody("invalid request body"))
		return req, false
	}
	req.Identification = strings.TrimSpace(req.Identification)
	req.Name = strings.TrimSpace(req.Name)
	req.CreditType = strings.TrimSpace(req.CreditType)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			logger.Info("Request validation failed", log.FieldError, err.Error())
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, validationBody(verrs))
			return req, false
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorBody(err.Error()))
		return req, false
	}
	if req.StartDate.IsZero() {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, errorBody("field fechaInicio is a required field"))
		return req, false
	}
	return req, true
}

// fail maps repository errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, api.ErrNotFound):
		status, msg = http.StatusNotFound, "operation not found"
	case errors.Is(err, api.ErrConflict):
		status, msg = http.StatusConflict, "identification already registered"
	case errors.Is(err, api.ErrInvalid):
		status, msg = http.StatusUnprocessableEntity, "unknown credit type"
	}

	logger := log.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Repository call failed", err,
			log.ComponentAPIServer, op, nil)
	} else {
		logger.Info("Request rejected",
			log.FieldOperation, op,
			log.FieldErrorKind, api.Kind(err),
			log.FieldError, err.Error())
	}

	render.Status(r, status)
	render.JSON(w, r, errorBody(msg))
}
