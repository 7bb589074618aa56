package amqp

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"operaciones/internal/api/memory"
	"operaciones/internal/core"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*OperationEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *OperationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func TestPublishingRepositoryEmitsOnMutations(t *testing.T) {
	pub := &recordingPublisher{}
	repo := NewPublishingRepository(memory.New(memory.DefaultCreditTypes), pub, log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	ctx := context.Background()

	op := core.Operation{Identification: "A", Name: "Ana", CreditType: "CONS", Amount: 10, StartDate: core.NewDate(2024, 1, 1), TermMonths: 3}
	created, err := repo.Create(ctx, op)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Update(ctx, created.ID, op); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); err == nil {
		t.Fatal("second delete must fail")
	}
	if _, err := repo.List(ctx, ""); err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(pub.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(pub.events))
	}
	want := []string{EventCreated, EventUpdated, EventDeleted}
	for i, ev := range pub.events {
		if ev.Type != want[i] || ev.OperationID != created.ID {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
	if pub.events[0].CreditType != "Consumo" {
		t.Errorf("created event credit type = %q", pub.events[0].CreditType)
	}
}

func TestPublishingRepositoryIgnoresPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := metrics.New()
	repo := NewPublishingRepository(memory.New(nil), pub, log.New(log.Config{Output: &bytes.Buffer{}}), m)

	_, err := repo.Create(context.Background(), core.Operation{Identification: "A", Name: "Ana", CreditType: "CONS", StartDate: core.NewDate(2024, 1, 1)})
	if err != nil {
		t.Fatalf("mutation must succeed when publish fails: %v", err)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues(EventCreated, "error")); got != 1 {
		t.Errorf("error counter = %v", got)
	}
}

func TestOperationEventJSON(t *testing.T) {
	ev := &OperationEvent{Type: EventDeleted, OperationID: 9, Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if bytes.Contains(b, []byte("identificacion")) {
		t.Errorf("deleted event must omit record fields: %s", b)
	}
	got, err := OperationEventFromJSON(b)
	if err != nil || got.OperationID != 9 || !got.Timestamp.Equal(ev.Timestamp) {
		t.Fatalf("round trip: %+v %v", got, err)
	}
	if _, err := OperationEventFromJSON([]byte(`{"operacionID":"x"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
