// Package rabbitmq owns the process-wide broker handle: one connection and
// one channel bound to a durable fanout exchange, shared by every request.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/config"
	"github.com/ScalabilityIssues/ticket-service/internal/logger"
	"github.com/ScalabilityIssues/ticket-service/internal/monitoring"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/wire"
)

// UpdateKind tags a published event with the lifecycle transition it
// reports. The numeric values are part of the broker contract.
type UpdateKind uint8

const (
	UpdateKindCreate UpdateKind = 0
	UpdateKindUpdate UpdateKind = 1
	UpdateKindDelete UpdateKind = 2
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateKindCreate:
		return "create"
	case UpdateKindUpdate:
		return "update"
	case UpdateKindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

const (
	contentType = "application/cbor"
	messageType = "ticketsvc.Ticket"

	// connectAttempts bounds the startup retry. Broker availability at
	// process start is the one transient failure worth retrying here.
	connectAttempts = 10
)

// encMode keeps sub-second precision on the event timestamps; the default
// CBOR time encoding truncates to whole epoch seconds.
var encMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

// publishChannel is the slice of *amqp.Channel the publisher needs; tests
// substitute a recording fake.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Rabbit struct {
	conn     *amqp.Connection
	channel  publishChannel
	exchange string
}

// Connect dials the broker with bounded exponential backoff, opens the
// channel and declares the exchange (create if absent, never fail when it
// already exists). Errors after the retry budget is spent are fatal to the
// caller.
func Connect(cfg config.RabbitConfig, log *logger.Logger) (*Rabbit, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Host, cfg.Port)

	conn, err := backoff.RetryNotifyWithData(
		func() (*amqp.Connection, error) {
			return amqp.Dial(url)
		},
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts),
		func(err error, next time.Duration) {
			log.Warn("RABBITMQ", fmt.Sprintf("Broker not reachable (%v), retrying in %s", err, next))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	// durable + non-auto-delete: the exchange survives broker restarts and
	// periods with no bound queues.
	if err := channel.ExchangeDeclare(cfg.Exchange, cfg.ExchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declaring exchange %q: %w", cfg.Exchange, err)
	}

	log.Info("RABBITMQ", fmt.Sprintf("Connected to broker, exchange %q (%s) declared", cfg.Exchange, cfg.ExchangeKind))

	return &Rabbit{conn: conn, channel: channel, exchange: cfg.Exchange}, nil
}

// NotifyTicketUpdate publishes a lifecycle event for the given ticket.
// Delivery is at-least-once to whatever is bound to the exchange: the call
// returns once the broker has taken the frame, with no confirm loop.
func (r *Rabbit) NotifyTicketUpdate(ctx context.Context, ticket wire.Ticket, kind UpdateKind) error {
	body, err := encMode.Marshal(ticket)
	if err != nil {
		return apperrors.Internal("failed to encode ticket event", err)
	}

	msg := amqp.Publishing{
		ContentType: contentType,
		Type:        messageType,
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Headers: amqp.Table{
			"x-update-kind": uint8(kind),
		},
		Body: body,
	}

	// fanout exchange, routing key intentionally empty
	if err := r.channel.PublishWithContext(ctx, r.exchange, "", false, false, msg); err != nil {
		return apperrors.Internal("failed to publish ticket event", err)
	}

	monitoring.EventPublished(kind.String())
	return nil
}

// Close releases the channel and connection. Safe to call once at shutdown.
func (r *Rabbit) Close() {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}
