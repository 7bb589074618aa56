package http

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"operaciones/internal/controller"
)

type feedbackKey struct{}

// feedback carries the browser's answer to a confirmation prompt into the
// controllers, and collects what they want to tell the user.
type feedback struct {
	confirmed bool

	mu    sync.Mutex
	notes []notification
}

type notification struct {
	Type    NotificationType
	Message string
}

func withFeedback(r *http.Request) (*http.Request, *feedback) {
	fb := &feedback{confirmed: confirmedByUser(r)}
	return r.WithContext(context.WithValue(r.Context(), feedbackKey{}, fb)), fb
}

func feedbackFrom(ctx context.Context) *feedback {
	fb, _ := ctx.Value(feedbackKey{}).(*feedback)
	return fb
}

// confirmedByUser reads the answer the browser gave to hx-confirm or
// hx-prompt before sending the request.
func confirmedByUser(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("confirmed"), "true") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(r.Header.Get("HX-Prompt"))) {
	case "y", "yes", "s", "si", "sí", "true":
		return true
	}
	return false
}

func (fb *feedback) add(t NotificationType, msg string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.notes = append(fb.notes, notification{Type: t, Message: msg})
}

func (fb *feedback) drain() []notification {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := fb.notes
	fb.notes = nil
	return out
}

// requestConfirmer answers prompts with what the current request carries.
type requestConfirmer struct{}

var _ controller.Confirmer = requestConfirmer{}

func (requestConfirmer) Confirm(ctx context.Context, _ string) (bool, error) {
	fb := feedbackFrom(ctx)
	return fb != nil && fb.confirmed, nil
}

// requestNotifier queues messages on the current request; they are sent
// back in the HX-Trigger header.
type requestNotifier struct{}

var _ controller.Notifier = requestNotifier{}

func (requestNotifier) Success(ctx context.Context, message string) {
	if fb := feedbackFrom(ctx); fb != nil {
		fb.add(NotificationSuccess, message)
	}
}

func (requestNotifier) Failure(ctx context.Context, message string, _ error) {
	if fb := feedbackFrom(ctx); fb != nil {
		fb.add(NotificationError, message)
	}
}
