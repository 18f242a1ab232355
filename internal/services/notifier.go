package services

import (
	"context"
	"time"

	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/pkg/workerpool"
)

// Delivers status-change events to the outside world (e.g. the email service).
type StatusPublisher interface {
	PublishStatusChange(ctx context.Context, change models.StatusChange) error
}

// Receives committed status transitions.
type StatusNotifier interface {
	Notify(changes ...models.StatusChange)
}

const (
	publishAttempts = 3
	publishBackoff  = 2 * time.Second
)

type poolNotifier struct {
	pool      *workerpool.WorkerPool
	publisher StatusPublisher
	log       *logger.Logger
}

// NewStatusNotifier publishes every change from the worker pool, retrying failures.
func NewStatusNotifier(pool *workerpool.WorkerPool, publisher StatusPublisher, log *logger.Logger) StatusNotifier {
	return &poolNotifier{pool: pool, publisher: publisher, log: log}
}

func (n *poolNotifier) Notify(changes ...models.StatusChange) {
	for _, change := range changes {
		job := workerpool.WithRetry(publishAttempts, publishBackoff, n.log, func(ctx context.Context) error {
			return n.publisher.PublishStatusChange(ctx, change)
		})
		if !n.pool.Submit(job) {
			n.log.Error("status change event dropped",
				"application_id", change.ApplicationID,
				"to", change.To,
			)
		}
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(...models.StatusChange) {}
