package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"operaciones/internal/api"
	"operaciones/internal/core"
	"operaciones/internal/log"
)

// ListState is the lifecycle of a list view.
type ListState int

const (
	ListIdle ListState = iota
	ListSearching
	ListLoaded
	ListMutating
)

func (s ListState) String() string {
	switch s {
	case ListIdle:
		return "idle"
	case ListSearching:
		return "searching"
	case ListLoaded:
		return "loaded"
	case ListMutating:
		return "mutating"
	default:
		return "unknown"
	}
}

// DeleteOutcome reports what a Delete call ended up doing.
type DeleteOutcome int

const (
	DeleteDeclined DeleteOutcome = iota
	DeleteDone
	DeleteFailed
)

type listRepository interface {
	api.OperationLister
	api.OperationDeleter
}

// ListSnapshot is a consistent copy of the controller state.
type ListSnapshot struct {
	State    ListState
	Search   string
	Items    []core.Operation
	Err      error
	LoadedAt time.Time
}

// ListController drives the operations table: debounced search, reload and
// confirmed delete. Load failures are reported through the Notifier and kept
// in the snapshot; they never escape the controller.
type ListController struct {
	repo     listRepository
	confirm  Confirmer
	notify   Notifier
	debounce *Debouncer
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    ListState
	search   string
	items    []core.Operation
	err      error
	loadedAt time.Time
	seq      uint64
	onChange func(ListSnapshot)
}

type ListOption func(*ListController)

// WithDebounce overrides the 300ms search quiet period.
func WithDebounce(d time.Duration) ListOption {
	return func(c *ListController) { c.debounce = NewDebouncer(d) }
}

func WithListLogger(l *log.Logger) ListOption {
	return func(c *ListController) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentList)
		}
	}
}

// OnChange registers a callback invoked after every completed load.
func OnChange(fn func(ListSnapshot)) ListOption {
	return func(c *ListController) { c.onChange = fn }
}

func NewListController(repo listRepository, confirm Confirmer, notify Notifier, opts ...ListOption) *ListController {
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	if notify == nil {
		notify = NopNotifier
	}
	c := &ListController{
		repo:     repo,
		confirm:  confirm,
		notify:   notify,
		debounce: NewDebouncer(DefaultDebounce),
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentList),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start performs the initial load with an empty search.
func (c *ListController) Start(ctx context.Context) ([]core.Operation, error) {
	c.mu.Lock()
	c.search = ""
	c.mu.Unlock()
	return c.load(ctx, "")
}

// SetSearch records the search text and schedules a debounced load.
// Earlier pending loads are cancelled.
func (c *ListController) SetSearch(q string) {
	c.mu.Lock()
	c.search = q
	c.state = ListSearching
	c.mu.Unlock()
	c.debounce.Trigger(func() {
		_, _ = c.load(context.Background(), q)
	})
}

// Search is the blocking variant of SetSearch. It returns ErrSuperseded,
// without contacting the backend, when another search arrives within the
// quiet period.
func (c *ListController) Search(ctx context.Context, q string) ([]core.Operation, error) {
	c.mu.Lock()
	c.search = q
	c.state = ListSearching
	c.mu.Unlock()
	if err := c.debounce.Wait(ctx); err != nil {
		return nil, err
	}
	return c.load(ctx, q)
}

// Reload fetches the list again with the current search text.
func (c *ListController) Reload(ctx context.Context) ([]core.Operation, error) {
	return c.load(ctx, c.Snapshot().Search)
}

// Clear resets the search text and reloads immediately.
func (c *ListController) Clear(ctx context.Context) ([]core.Operation, error) {
	c.debounce.Cancel()
	c.mu.Lock()
	c.search = ""
	c.mu.Unlock()
	return c.load(ctx, "")
}

// Delete asks for confirmation, deletes, and reloads the list whatever the
// delete result was.
func (c *ListController) Delete(ctx context.Context, id int64) DeleteOutcome {
	ok, err := c.confirm.Confirm(ctx, MsgConfirmDelete)
	if err != nil {
		c.logger.WarnContext(ctx, "Delete confirmation failed", log.FieldOperationID, id, log.FieldError, err)
		return DeleteDeclined
	}
	if !ok {
		c.logger.DebugContext(ctx, "Delete declined", log.FieldOperationID, id)
		return DeleteDeclined
	}

	c.mu.Lock()
	c.state = ListMutating
	search := c.search
	c.mu.Unlock()

	delErr := c.repo.Delete(ctx, id)
	_, _ = c.load(ctx, search)

	if delErr != nil {
		c.logger.ErrorContext(ctx, "Delete failed",
			log.FieldOperationID, id, log.FieldError, delErr, log.FieldErrorKind, api.Kind(delErr))
		c.notify.Failure(ctx, MsgDeleteFailed, delErr)
		return DeleteFailed
	}
	c.logger.InfoContext(ctx, "Operation deleted", log.FieldOperationID, id)
	c.notify.Success(ctx, MsgDeleted)
	return DeleteDone
}

// Snapshot returns a copy of the current state.
func (c *ListController) Snapshot() ListSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *ListController) snapshotLocked() ListSnapshot {
	return ListSnapshot{
		State:    c.state,
		Search:   c.search,
		Items:    append([]core.Operation(nil), c.items...),
		Err:      c.err,
		LoadedAt: c.loadedAt,
	}
}

// load fetches q and stores the result unless a newer load started since.
// Failures are logged and notified before being returned.
func (c *ListController) load(ctx context.Context, q string) ([]core.Operation, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.state != ListMutating {
		c.state = ListSearching
	}
	c.mu.Unlock()

	start := c.now()
	items, err := c.repo.List(ctx, strings.TrimSpace(q))

	c.mu.Lock()
	if seq != c.seq {
		// A later load owns the state.
		c.mu.Unlock()
		return items, err
	}
	c.state = ListLoaded
	if err != nil {
		c.err = err
	} else {
		c.err = nil
		c.items = items
		c.loadedAt = c.now()
	}
	snap := c.snapshotLocked()
	onChange := c.onChange
	c.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.ErrorContext(ctx, "List load failed",
				log.FieldSearch, q, log.FieldError, err, log.FieldErrorKind, api.Kind(err))
			c.notify.Failure(ctx, MsgLoadFailed, err)
		}
	} else {
		c.logger.DebugContext(ctx, "List loaded",
			log.FieldSearch, q, log.FieldCount, len(items), log.FieldDuration, c.now().Sub(start).Milliseconds())
	}
	if onChange != nil {
		onChange(snap)
	}
	return items, err
}
