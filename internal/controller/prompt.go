// Package controller holds the list and form state machines that sit
// between a user interface and the operations backend. User interaction
// goes through the Confirmer and Notifier interfaces so the controllers
// can be driven by a browser session, a terminal or a test.
package controller

import "context"

// Confirmer asks the user a yes/no question and waits for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// AlwaysConfirm answers yes without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Notifier shows informational and failure messages to the user.
type Notifier interface {
	Success(ctx context.Context, message string)
	Failure(ctx context.Context, message string, err error)
}

type nopNotifier struct{}

func (nopNotifier) Success(context.Context, string)        {}
func (nopNotifier) Failure(context.Context, string, error) {}

// NopNotifier discards every message.
var NopNotifier Notifier = nopNotifier{}

// User-facing messages.
const (
	MsgConfirmDelete = "Delete this operation?"
	MsgConfirmCancel = "Discard unsaved changes?"
	MsgDeleted       = "Operation deleted"
	MsgDeleteFailed  = "Could not delete the operation"
	MsgLoadFailed    = "Could not load operations"
	MsgCreated       = "Operation created"
	MsgUpdated       = "Operation updated"
	MsgSaveFailed    = "Could not save the operation"
	MsgDuplicate     = "An operation with this identification already exists"
	MsgFormLoad      = "Could not load the form"
)
