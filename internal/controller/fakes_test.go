package controller

import (
	"context"
	"sync"

	"operaciones/internal/api"
	"operaciones/internal/core"
)

type fakeRepo struct {
	mu        sync.Mutex
	ops       []core.Operation
	types     []core.CreditType
	listCalls []string
	deleted   []int64
	created   []core.Operation
	updated   []core.Operation

	listErr   error
	deleteErr error
	saveErr   error
	typesErr  error
	// saveGate, when set, blocks Create/Update until closed.
	saveGate chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		types: []core.CreditType{{Code: "CONS", Name: "Consumo"}, {Code: "HIPO", Name: "Hipotecario"}},
		ops: []core.Operation{
			{ID: 1, Identification: "A", Name: "Ana", CreditType: "Hipotecario", Amount: 100, StartDate: core.NewDate(2024, 1, 15), TermMonths: 6},
			{ID: 2, Identification: "B", Name: "Bruno", CreditType: "Consumo", Amount: 200, StartDate: core.NewDate(2024, 2, 1), TermMonths: 12},
		},
	}
}

func (f *fakeRepo) List(_ context.Context, search string) ([]core.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, search)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Operation(nil), f.ops...), nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (core.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range f.ops {
		if op.ID == id {
			return op, nil
		}
	}
	return core.Operation{}, api.ErrNotFound
}

func (f *fakeRepo) Create(_ context.Context, op core.Operation) (core.Operation, error) {
	f.waitGate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return core.Operation{}, f.saveErr
	}
	op.ID = int64(len(f.ops) + 1)
	f.created = append(f.created, op)
	f.ops = append(f.ops, op)
	return op, nil
}

func (f *fakeRepo) Update(_ context.Context, id int64, op core.Operation) (core.Operation, error) {
	f.waitGate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return core.Operation{}, f.saveErr
	}
	op.ID = id
	f.updated = append(f.updated, op)
	return op, nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) ListCreditTypes(context.Context) ([]core.CreditType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.typesErr != nil {
		return nil, f.typesErr
	}
	return append([]core.CreditType(nil), f.types...), nil
}

func (f *fakeRepo) waitGate() {
	f.mu.Lock()
	gate := f.saveGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeRepo) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listCalls...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	success  []string
	failures []string
}

func (n *recordingNotifier) Success(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *recordingNotifier) Failure(_ context.Context, msg string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, msg)
}

type scriptedConfirmer struct {
	answer bool
	asked  []string
}

func (c *scriptedConfirmer) Confirm(_ context.Context, msg string) (bool, error) {
	c.asked = append(c.asked, msg)
	return c.answer, nil
}
