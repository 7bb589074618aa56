package amqp

import (
	"context"

	"operaciones/internal/api"
	"operaciones/internal/core"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
)

// Publisher is the part of Client used by PublishingRepository.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *OperationEvent) error
}

// PublishingRepository emits an event after every successful mutation of
// the wrapped repository. Publish failures are logged and counted but never
// fail the mutation.
type PublishingRepository struct {
	api.Repository
	pub     Publisher
	logger  *log.Logger
	metrics *metrics.Metrics
}

var _ api.Repository = (*PublishingRepository)(nil)

func NewPublishingRepository(next api.Repository, pub Publisher, logger *log.Logger, m *metrics.Metrics) *PublishingRepository {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &PublishingRepository{
		Repository: next,
		pub:        pub,
		logger:     logger.WithComponent(log.ComponentAMQP),
		metrics:    m,
	}
}

func (r *PublishingRepository) Create(ctx context.Context, op core.Operation) (core.Operation, error) {
	out, err := r.Repository.Create(ctx, op)
	if err == nil {
		r.publish(ctx, NewOperationEvent(EventCreated, out))
	}
	return out, err
}

func (r *PublishingRepository) Update(ctx context.Context, id int64, op core.Operation) (core.Operation, error) {
	out, err := r.Repository.Update(ctx, id, op)
	if err == nil {
		r.publish(ctx, NewOperationEvent(EventUpdated, out))
	}
	return out, err
}

func (r *PublishingRepository) Delete(ctx context.Context, id int64) error {
	err := r.Repository.Delete(ctx, id)
	if err == nil {
		r.publish(ctx, NewDeletedEvent(id))
	}
	return err
}

func (r *PublishingRepository) publish(ctx context.Context, ev *OperationEvent) {
	err := r.pub.PublishEvent(context.WithoutCancel(ctx), ev)
	r.metrics.ObserveEvent(ev.Type, err)
	if err != nil {
		r.logger.WarnContext(ctx, "Event publish failed",
			log.FieldOperation, log.OpPublish, "type", ev.Type, log.FieldOperationID, ev.OperationID, log.FieldError, err)
	}
}
