package event

import (
	"fmt"

	"github.com/paulexconde/camperportal/internal/config"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConnection holds the RabbitMQ connection and channel
type RabbitMQConnection struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	log        *logger.Logger
}

// ConnectRabbitMQ dials the broker and declares the topic exchange events go to.
func ConnectRabbitMQ(cfg config.RabbitMQConfig, log *logger.Logger) (*RabbitMQConnection, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	log.Info("connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port, "exchange", cfg.Exchange)

	return &RabbitMQConnection{
		Connection: conn,
		Channel:    ch,
		log:        log,
	}, nil
}

// Close closes the RabbitMQ connection and channel
func (r *RabbitMQConnection) Close() error {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.log.Error("failed to close RabbitMQ channel", "error", err)
		}
	}
	if r.Connection != nil {
		if err := r.Connection.Close(); err != nil {
			r.log.Error("failed to close RabbitMQ connection", "error", err)
			return err
		}
	}
	r.log.Info("RabbitMQ connection closed")
	return nil
}
