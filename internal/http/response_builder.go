// Package http serves the browser front-end: server-rendered pages and
// htmx partials driven by per-session list and form controllers.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
)

// HX-Trigger event names understood by web/static/app.js and the templates.
const (
	EventShowNotification = "show-notification"
	EventOperationsReload = "operations:reload"
	EventFormClose        = "form:close"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
// It encapsulates the construction of HX-Trigger headers and response bodies.
type HTMXResponseBuilder struct {
	triggers      map[string]any
	notifications []map[string]any
	statusCode    int
	body          []byte
	headers       map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerOperationsReload makes the table fetch the list again.
func (b *HTMXResponseBuilder) TriggerOperationsReload() *HTMXResponseBuilder {
	return b.Trigger(EventOperationsReload, struct{}{})
}

// TriggerFormClose empties the form panel.
func (b *HTMXResponseBuilder) TriggerFormClose() *HTMXResponseBuilder {
	return b.Trigger(EventFormClose, struct{}{})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification queues a show-notification message. Several
// notifications are sent as a list.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	b.notifications = append(b.notifications, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
	return b
}

// TriggerSuccessNotification is a convenience method for success notifications.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

// TriggerErrorNotification is a convenience method for error notifications.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Notify forwards what the controllers reported during the request.
func (b *HTMXResponseBuilder) Notify(fb *feedback) *HTMXResponseBuilder {
	if fb == nil {
		return b
	}
	for _, n := range fb.drain() {
		if n.Type == NotificationError {
			b.TriggerErrorNotification(n.Message)
		} else {
			b.TriggerNotification(n.Type, n.Message, 3000)
		}
	}
	return b
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html []byte) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = html
	return b
}

// Render executes a named template into the body.
func (b *HTMXResponseBuilder) Render(t *template.Template, name string, data any) error {
	if t == nil {
		return errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	b.BodyHTML(buf.Bytes())
	return nil
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	switch len(b.notifications) {
	case 0:
	case 1:
		b.triggers[EventShowNotification] = b.notifications[0]
	default:
		b.triggers[EventShowNotification] = b.notifications
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped for safety.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML([]byte(`<div class="error">` + escapedMsg + `</div>`))
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
