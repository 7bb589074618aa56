package metrics

import (
	"context"
	"time"

	"operaciones/internal/api"
	"operaciones/internal/core"
)

// Repository records count, result and latency of every call made through
// the wrapped api.Repository.
type Repository struct {
	next api.Repository
	m    *Metrics
}

var _ api.Repository = (*Repository)(nil)

// InstrumentRepository wraps next. A nil Metrics returns next unchanged.
func InstrumentRepository(next api.Repository, m *Metrics) api.Repository {
	if m == nil {
		return next
	}
	return &Repository{next: next, m: m}
}

func (r *Repository) observe(op string, start time.Time, err error) {
	r.m.BackendCalls.WithLabelValues(op, api.Kind(err)).Inc()
	r.m.BackendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (r *Repository) List(ctx context.Context, search string) ([]core.Operation, error) {
	start := time.Now()
	ops, err := r.next.List(ctx, search)
	r.observe("list", start, err)
	return ops, err
}

func (r *Repository) Get(ctx context.Context, id int64) (core.Operation, error) {
	start := time.Now()
	op, err := r.next.Get(ctx, id)
	r.observe("get", start, err)
	return op, err
}

func (r *Repository) Create(ctx context.Context, op core.Operation) (core.Operation, error) {
	start := time.Now()
	out, err := r.next.Create(ctx, op)
	r.observe("create", start, err)
	return out, err
}

func (r *Repository) Update(ctx context.Context, id int64, op core.Operation) (core.Operation, error) {
	start := time.Now()
	out, err := r.next.Update(ctx, id, op)
	r.observe("update", start, err)
	return out, err
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	err := r.next.Delete(ctx, id)
	r.observe("delete", start, err)
	return err
}

func (r *Repository) ListCreditTypes(ctx context.Context) ([]core.CreditType, error) {
	start := time.Now()
	types, err := r.next.ListCreditTypes(ctx)
	r.observe("list_credit_types", start, err)
	return types, err
}
