package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"operaciones/internal/api"
	"operaciones/internal/core"
)

var fixedToday = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func newForm(repo *fakeRepo, confirm Confirmer, n Notifier) *FormController {
	return NewFormController(repo, confirm, n, WithClock(func() time.Time { return fixedToday }))
}

func TestFormNewDefaults(t *testing.T) {
	c := newForm(newFakeRepo(), nil, nil)
	assert.Equal(t, FormLoadingCreditTypes, c.State())
	require.NoError(t, c.New(context.Background()))

	d := c.Draft()
	assert.Equal(t, "2024-03-10", d.StartDate)
	assert.Equal(t, "12", d.TermMonths)
	assert.False(t, d.Approved)
	assert.Equal(t, "CONS", d.CreditType)
	assert.Zero(t, d.ID)
	assert.Equal(t, FormEditing, c.State())
	assert.Len(t, c.CreditTypes(), 2)

	end, ok := c.EndDate()
	require.True(t, ok)
	assert.Equal(t, "2025-03-10", end.FormValue())
}

func TestFormLoadResolvesCreditTypeName(t *testing.T) {
	c := newForm(newFakeRepo(), nil, nil)
	require.NoError(t, c.Load(context.Background(), 1))

	d := c.Draft()
	assert.Equal(t, int64(1), d.ID)
	assert.Equal(t, "HIPO", d.CreditType)
	assert.Equal(t, "6", d.TermMonths)
	assert.Equal(t, "2024-01-15", d.StartDate)
}

func TestFormLoadMissingRecord(t *testing.T) {
	n := &recordingNotifier{}
	c := newForm(newFakeRepo(), nil, n)
	err := c.Load(context.Background(), 404)
	require.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, FormFailed, c.State())
	assert.Equal(t, []string{MsgFormLoad}, n.failures)

	_, err = c.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrFormNotReady)
}

func TestResolveCreditTypeCode(t *testing.T) {
	types := []core.CreditType{{Code: "CONS", Name: "Consumo"}, {Code: "VEH", Name: "Vehicular"}}
	assert.Equal(t, "VEH", ResolveCreditTypeCode(types, "Vehicular"))
	assert.Equal(t, "VEH", ResolveCreditTypeCode(types, "VEH"))
	assert.Equal(t, "CONS", ResolveCreditTypeCode(types, "Desconocido"))
	assert.Equal(t, "", ResolveCreditTypeCode(nil, "Consumo"))
}

func TestFormSubmitFieldErrorsSkipBackend(t *testing.T) {
	repo := newFakeRepo()
	c := newForm(repo, nil, nil)
	require.NoError(t, c.New(context.Background()))
	c.SetDraft(core.Draft{Amount: "x", TermMonths: "y"})

	_, err := c.Submit(context.Background(), nil)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, c.FieldErrors(), 5)
	assert.Equal(t, FormEditing, c.State())
	assert.Empty(t, repo.created)
}

func TestFormSubmitDuplicateBlocks(t *testing.T) {
	repo := newFakeRepo()
	n := &recordingNotifier{}
	c := newForm(repo, nil, n)
	require.NoError(t, c.New(context.Background()))
	d := c.Draft()
	d.Identification, d.Name, d.Amount = "A", "Otra Ana", "50"
	c.SetDraft(d)

	_, err := c.Submit(context.Background(), repo.ops)
	require.ErrorIs(t, err, core.ErrDuplicate)
	assert.Empty(t, repo.created)
	assert.Equal(t, []string{MsgDuplicate}, n.failures)
	assert.Empty(t, c.FieldErrors())
}

func TestFormSubmitCreate(t *testing.T) {
	repo := newFakeRepo()
	n := &recordingNotifier{}
	c := newForm(repo, nil, n)
	require.NoError(t, c.New(context.Background()))
	d := c.Draft()
	d.Identification, d.Name, d.Amount, d.TermMonths = " C ", "Carla", "1500,75", "24"
	c.SetDraft(d)

	saved, err := c.Submit(context.Background(), repo.ops)
	require.NoError(t, err)
	assert.Equal(t, int64(3), saved.ID)
	require.Len(t, repo.created, 1)
	got := repo.created[0]
	assert.Equal(t, "C", got.Identification)
	assert.Equal(t, "CONS", got.CreditType)
	assert.InDelta(t, 1500.75, got.Amount, 1e-9)
	assert.Equal(t, 24, got.TermMonths)
	assert.Equal(t, "2026-03-10", got.EndDate.FormValue())
	assert.Equal(t, FormSaved, c.State())
	assert.Equal(t, []string{MsgCreated}, n.success)

	_, err = c.Submit(context.Background(), repo.ops)
	assert.ErrorIs(t, err, ErrFormNotReady)
}

func TestFormSubmitUpdateKeepsOwnIdentification(t *testing.T) {
	repo := newFakeRepo()
	n := &recordingNotifier{}
	c := newForm(repo, nil, n)
	require.NoError(t, c.Load(context.Background(), 1))
	d := c.Draft()
	d.Name = "Ana Actualizada"
	c.SetDraft(d)

	saved, err := c.Submit(context.Background(), repo.ops)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, "HIPO", repo.updated[0].CreditType)
	assert.Empty(t, repo.created)
	assert.Equal(t, []string{MsgUpdated}, n.success)
}

func TestFormSubmitInProgressGuard(t *testing.T) {
	repo := newFakeRepo()
	repo.saveGate = make(chan struct{})
	c := newForm(repo, nil, nil)
	require.NoError(t, c.New(context.Background()))
	d := c.Draft()
	d.Identification, d.Name, d.Amount = "Z", "Zoe", "10"
	c.SetDraft(d)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == FormSubmitting }, time.Second, time.Millisecond)

	_, err := c.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(repo.saveGate)
	require.NoError(t, <-done)
	assert.Len(t, repo.created, 1)
}

func TestFormSubmitBackendFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = &api.RemoteError{Op: "create operation", Status: 409, Err: api.ErrConflict}
	n := &recordingNotifier{}
	c := newForm(repo, nil, n)
	require.NoError(t, c.New(context.Background()))
	d := c.Draft()
	d.Identification, d.Name, d.Amount = "Q", "Quim", "10"
	c.SetDraft(d)

	_, err := c.Submit(context.Background(), nil)
	require.ErrorIs(t, err, api.ErrConflict)
	assert.Equal(t, FormFailed, c.State())
	assert.Equal(t, []string{MsgSaveFailed}, n.failures)

	repo.saveErr = nil
	_, err = c.Submit(context.Background(), nil)
	require.NoError(t, err, "a failed form can be resubmitted")
}

func TestFormCancelAsksFirst(t *testing.T) {
	confirm := &scriptedConfirmer{answer: false}
	c := newForm(newFakeRepo(), confirm, nil)
	require.NoError(t, c.New(context.Background()))

	closed, err := c.Cancel(context.Background())
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, FormEditing, c.State())

	confirm.answer = true
	closed, err = c.Cancel(context.Background())
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, FormClosed, c.State())
	assert.Equal(t, []string{MsgConfirmCancel, MsgConfirmCancel}, confirm.asked)
}

func TestFormCancelConfirmError(t *testing.T) {
	failing := ConfirmFunc(func(context.Context, string) (bool, error) { return false, errors.New("stdin closed") })
	c := newForm(newFakeRepo(), failing, nil)
	require.NoError(t, c.New(context.Background()))
	_, err := c.Cancel(context.Background())
	require.Error(t, err)
}
