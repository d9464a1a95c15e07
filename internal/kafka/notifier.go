package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) error
}

// Notifier turns committed order transitions into lifecycle events. Publishing
// goes through a circuit breaker so a dead broker costs callers nothing once
// the breaker is open.
type Notifier struct {
	pub      Publisher
	producer string
	cb       *gobreaker.CircuitBreaker[struct{}]
	log      *zap.Logger
}

func NewNotifier(pub Publisher, producer string, log *zap.Logger) *Notifier {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "order-notifier",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Notifier{pub: pub, producer: producer, cb: cb, log: log}
}

func (n *Notifier) Notify(_ context.Context, eventType string, o *orders.Order) error {
	topic := orders.TopicFor(eventType)
	if topic == "" {
		return fmt.Errorf("no topic for event %s", eventType)
	}
	env, err := orders.NewEnvelope(eventType, n.producer, o.ID, orders.NewOrderEventPayload(o))
	if err != nil {
		return err
	}
	b, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	_, err = n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.pub.Publish(topic, orders.PartitionKey(o.ID), b, EnvelopeHeaders(env)...)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	n.log.Debug("event queued", zap.String("event", eventType), zap.String("event_id", env.EventID))
	return nil
}
