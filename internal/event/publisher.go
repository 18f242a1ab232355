package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const StatusChangedRoutingKey = "application.status_changed"

type StatusChangedEvent struct {
	EventID       uuid.UUID                `json:"event_id"`
	Type          string                   `json:"type"`
	ApplicationID uuid.UUID                `json:"application_id"`
	From          models.ApplicationStatus `json:"from"`
	To            models.ApplicationStatus `json:"to"`
	ActorID       *uuid.UUID               `json:"actor_id,omitempty"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// NewStatusChangedEvent wraps a transition. The event id is derived from the
// transition so a retried publish carries the same id.
func NewStatusChangedEvent(change models.StatusChange) StatusChangedEvent {
	key := fmt.Sprintf("%s/%s/%s/%d", change.ApplicationID, change.From, change.To, change.OccurredAt.UnixNano())
	return StatusChangedEvent{
		EventID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)),
		Type:          StatusChangedRoutingKey,
		ApplicationID: change.ApplicationID,
		From:          change.From,
		To:            change.To,
		ActorID:       change.ActorID,
		OccurredAt:    change.OccurredAt,
	}
}

// AMQPPublisher publishes status changes to the portal exchange.
type AMQPPublisher struct {
	conn     *RabbitMQConnection
	exchange string
	log      *logger.Logger

	mu sync.Mutex

	messagesPublished atomic.Int64
	messagesFailed    atomic.Int64
}

func NewAMQPPublisher(conn *RabbitMQConnection, exchange string, log *logger.Logger) *AMQPPublisher {
	return &AMQPPublisher{conn: conn, exchange: exchange, log: log}
}

func (p *AMQPPublisher) PublishStatusChange(ctx context.Context, change models.StatusChange) error {
	evt := NewStatusChangedEvent(change)
	body, err := json.Marshal(evt)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to marshal status change event: %w", err)
	}

	p.mu.Lock()
	err = p.conn.Channel.PublishWithContext(
		ctx,
		p.exchange,              // exchange
		StatusChangedRoutingKey, // routing key
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    evt.EventID.String(),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	p.mu.Unlock()
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish status change event: %w", err)
	}

	p.messagesPublished.Add(1)
	p.log.Debug("status change event published",
		"event_id", evt.EventID,
		"application_id", evt.ApplicationID,
		"to", evt.To,
	)
	return nil
}

// Healthy reports whether the broker connection is open.
func (p *AMQPPublisher) Healthy() bool {
	return p.conn != nil && p.conn.Connection != nil && !p.conn.Connection.IsClosed()
}

func (p *AMQPPublisher) GetMetrics() map[string]any {
	return map[string]any{
		"messages_published": p.messagesPublished.Load(),
		"messages_failed":    p.messagesFailed.Load(),
		"exchange":           p.exchange,
	}
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishStatusChange(ctx context.Context, change models.StatusChange) error {
	evt := NewStatusChangedEvent(change)
	p.log.Info("status change event",
		"event_id", evt.EventID,
		"type", evt.Type,
		"application_id", evt.ApplicationID,
		"from", evt.From,
		"to", evt.To,
		"actor_id", evt.ActorID,
		"occurred_at", evt.OccurredAt,
	)
	return nil
}
