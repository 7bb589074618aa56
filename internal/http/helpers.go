package http

import (
	"errors"
	"net/http"
	"strings"

	"operaciones/internal/api"
	"operaciones/internal/controller"
	"operaciones/internal/core"
)

// sanitizeInput removes control characters, except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// statusFor maps controller and backend errors to response codes.
func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr), errors.Is(err, api.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, api.ErrConflict),
		errors.Is(err, controller.ErrSubmitInProgress), errors.Is(err, controller.ErrFormNotReady):
		return http.StatusConflict
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
