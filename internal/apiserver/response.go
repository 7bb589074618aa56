package apiserver

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func errorBody(msg string) ErrorResponse {
	return ErrorResponse{Status: StatusError, Error: msg}
}

// validationBody turns validator errors into one readable message, using
// the JSON field names the clients send.
func validationBody(errs validator.ValidationErrors) ErrorResponse {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "lte", "max":
			msgs = append(msgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return errorBody(strings.Join(msgs, ", "))
}
