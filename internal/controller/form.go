package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"operaciones/internal/api"
	"operaciones/internal/core"
	"operaciones/internal/log"
)

// FormState is the lifecycle of an operation form.
type FormState int

const (
	FormLoadingCreditTypes FormState = iota
	FormEditing
	FormSubmitting
	FormSaved
	FormFailed
	FormClosed
)

func (s FormState) String() string {
	switch s {
	case FormLoadingCreditTypes:
		return "loading_credit_types"
	case FormEditing:
		return "editing"
	case FormSubmitting:
		return "submitting"
	case FormSaved:
		return "saved"
	case FormFailed:
		return "failed"
	case FormClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrSubmitInProgress rejects a submit while another one is running.
	ErrSubmitInProgress = errors.New("a submission is already in progress")
	// ErrFormNotReady rejects a submit before the form finished loading.
	ErrFormNotReady = errors.New("form is not ready")
)

type formRepository interface {
	api.OperationReader
	api.OperationWriter
	api.CreditTypeReader
}

// FormController owns one create or edit session: credit types are loaded
// once when the form opens and reused until it closes.
type FormController struct {
	repo    formRepository
	confirm Confirmer
	notify  Notifier
	logger  *log.Logger
	now     func() time.Time

	mu          sync.Mutex
	state       FormState
	draft       core.Draft
	types       []core.CreditType
	fieldErrors map[string]string
	err         error
	saved       core.Operation
	loaded      bool
}

type FormOption func(*FormController)

func WithFormLogger(l *log.Logger) FormOption {
	return func(c *FormController) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentForm)
		}
	}
}

// WithClock overrides the source of "today" for new drafts.
func WithClock(now func() time.Time) FormOption {
	return func(c *FormController) { c.now = now }
}

func NewFormController(repo formRepository, confirm Confirmer, notify Notifier, opts ...FormOption) *FormController {
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	if notify == nil {
		notify = NopNotifier
	}
	c := &FormController{
		repo:    repo,
		confirm: confirm,
		notify:  notify,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentForm),
		now:     time.Now,
		state:   FormLoadingCreditTypes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New opens the form for a new record: start date today, 12 months, not
// approved, first available credit type.
func (c *FormController) New(ctx context.Context) error {
	c.reset()
	types, err := c.repo.ListCreditTypes(ctx)
	if err != nil {
		return c.loadFailed(ctx, err)
	}
	draft := core.NewDraft(c.now())
	if len(types) > 0 {
		draft.CreditType = types[0].Code
	}
	c.ready(draft, types)
	return nil
}

// Edit opens the form pre-populated from op.
func (c *FormController) Edit(ctx context.Context, op core.Operation) error {
	c.reset()
	types, err := c.repo.ListCreditTypes(ctx)
	if err != nil {
		return c.loadFailed(ctx, err)
	}
	c.ready(draftFor(op, types), types)
	return nil
}

// Load fetches the record and the credit types concurrently, then opens the
// form for editing.
func (c *FormController) Load(ctx context.Context, id int64) error {
	c.reset()
	var (
		op    core.Operation
		types []core.CreditType
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		op, err = c.repo.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		types, err = c.repo.ListCreditTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return c.loadFailed(ctx, fmt.Errorf("load operation %d: %w", id, err))
	}
	c.ready(draftFor(op, types), types)
	return nil
}

// ResolveCreditTypeCode maps a record's credit type to a code. The backend
// returns the display name, so names are matched first, then codes; when
// neither matches the first available code is used.
func ResolveCreditTypeCode(types []core.CreditType, value string) string {
	if ct, ok := core.FindCreditTypeByName(types, value); ok {
		return ct.Code
	}
	if ct, ok := core.FindCreditTypeByCode(types, value); ok {
		return ct.Code
	}
	if len(types) > 0 {
		return types[0].Code
	}
	return ""
}

func draftFor(op core.Operation, types []core.CreditType) core.Draft {
	d := core.DraftFromOperation(op)
	d.CreditType = ResolveCreditTypeCode(types, op.CreditType)
	return d
}

// SetDraft replaces the edited values. Field errors from a previous submit
// are kept until the next submit.
func (c *FormController) SetDraft(d core.Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = d
}

func (c *FormController) Draft() core.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *FormController) CreditTypes() []core.CreditType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.CreditType(nil), c.types...)
}

func (c *FormController) State() FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FieldErrors returns the inline errors of the last submit.
func (c *FormController) FieldErrors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.fieldErrors))
	for k, v := range c.fieldErrors {
		out[k] = v
	}
	return out
}

// Err returns the last load or save failure.
func (c *FormController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Saved returns the record returned by the last successful submit.
func (c *FormController) Saved() core.Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

// EndDate previews the end date for the current draft.
func (c *FormController) EndDate() (core.Date, bool) {
	return c.Draft().EndDate()
}

// Submit validates the draft against existing, then creates or updates it.
// Field errors return a *core.ValidationError and a duplicate returns
// core.ErrDuplicate, both without calling the backend.
func (c *FormController) Submit(ctx context.Context, existing []core.Operation) (core.Operation, error) {
	c.mu.Lock()
	switch {
	case c.state == FormSubmitting:
		c.mu.Unlock()
		return core.Operation{}, ErrSubmitInProgress
	case !c.loaded, c.state == FormSaved, c.state == FormClosed:
		c.mu.Unlock()
		return core.Operation{}, ErrFormNotReady
	}
	c.state = FormSubmitting
	draft := c.draft
	c.mu.Unlock()

	if err := core.ValidateForSubmit(draft, existing); err != nil {
		var verr *core.ValidationError
		c.mu.Lock()
		c.state = FormEditing
		if errors.As(err, &verr) {
			c.fieldErrors = verr.Fields
		} else {
			c.fieldErrors = nil
		}
		c.mu.Unlock()
		if errors.Is(err, core.ErrDuplicate) {
			c.logger.InfoContext(ctx, "Duplicate identification rejected", log.FieldIdent, draft.Identification)
			c.notify.Failure(ctx, MsgDuplicate, err)
		}
		return core.Operation{}, err
	}

	payload, err := draft.Payload()
	if err != nil {
		return core.Operation{}, c.saveFailed(ctx, err)
	}

	var (
		saved core.Operation
		op    = log.OpCreate
		msg   = MsgCreated
	)
	if draft.ID > 0 {
		op, msg = log.OpUpdate, MsgUpdated
		saved, err = c.repo.Update(ctx, draft.ID, payload)
	} else {
		saved, err = c.repo.Create(ctx, payload)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Save failed",
			log.FieldOperation, op, log.FieldIdent, payload.Identification,
			log.FieldError, err, log.FieldErrorKind, api.Kind(err))
		return core.Operation{}, c.saveFailed(ctx, err)
	}

	c.mu.Lock()
	c.state = FormSaved
	c.fieldErrors = nil
	c.err = nil
	c.saved = saved
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Operation saved",
		log.FieldOperation, op, log.FieldOperationID, saved.ID, log.FieldIdent, payload.Identification,
		log.FieldCreditType, payload.CreditType, log.FieldAmount, payload.Amount, log.FieldTermMonths, payload.TermMonths)
	c.notify.Success(ctx, msg)
	return saved, nil
}

// Cancel asks before discarding the draft. It reports whether the form was
// closed.
func (c *FormController) Cancel(ctx context.Context) (bool, error) {
	if c.State() == FormSaved {
		c.close()
		return true, nil
	}
	ok, err := c.confirm.Confirm(ctx, MsgConfirmCancel)
	if err != nil {
		return false, fmt.Errorf("confirm cancel: %w", err)
	}
	if !ok {
		return false, nil
	}
	c.close()
	return true, nil
}

func (c *FormController) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = FormLoadingCreditTypes
	c.draft = core.Draft{}
	c.types = nil
	c.fieldErrors = nil
	c.err = nil
	c.saved = core.Operation{}
	c.loaded = false
}

func (c *FormController) ready(d core.Draft, types []core.CreditType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = d
	c.types = append([]core.CreditType(nil), types...)
	c.state = FormEditing
	c.loaded = true
}

func (c *FormController) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = FormClosed
}

func (c *FormController) loadFailed(ctx context.Context, err error) error {
	c.mu.Lock()
	c.state = FormFailed
	c.err = err
	c.mu.Unlock()
	c.logger.ErrorContext(ctx, "Form load failed", log.FieldError, err, log.FieldErrorKind, api.Kind(err))
	c.notify.Failure(ctx, MsgFormLoad, err)
	return err
}

func (c *FormController) saveFailed(ctx context.Context, err error) error {
	c.mu.Lock()
	c.state = FormFailed
	c.err = err
	c.mu.Unlock()
	c.notify.Failure(ctx, MsgSaveFailed, err)
	return err
}
