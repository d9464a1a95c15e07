// Package payments applies payment gateway results delivered over Kafka.
package payments

import (
	"context"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// errMalformedPayload marks a payment event whose payload cannot be decoded.
// Redelivery would fail the same way.
var errMalformedPayload = errors.New("malformed payment payload")

type OrderPayments interface {
	MarkOrderPaid(ctx context.Context, orderID string) (*orders.Order, error)
	MarkOrderPaymentFailed(ctx context.Context, orderID string) (*orders.Order, error)
}

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Handler struct {
	Orders OrderPayments
	Dedup  Deduper
	Log    *zap.Logger
}

// Handle is installed as the consumer handler for order.payment.result.
// Redelivered events are skipped by event id. Results the order can no longer
// accept are logged and committed, since retrying them cannot succeed.
func (h *Handler) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		h.Log.Warn("dropping undecodable payment event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentAuthorized && env.EventType != orders.EventPaymentFailed {
		return nil
	}

	first, err := h.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		h.Log.Debug("duplicate payment event", zap.String("event_id", env.EventID))
		return nil
	}

	if err := h.apply(ctx, env); err != nil {
		if errors.Is(err, errMalformedPayload) {
			h.Log.Warn("dropping malformed payment event", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		if errors.Is(err, fulfillment.ErrInvalidTransition) || errors.Is(err, orders.ErrNotFound) {
			h.Log.Warn("payment result rejected",
				zap.String("event_id", env.EventID),
				zap.String("order_id", env.CorrelationID),
				zap.Error(err))
			return nil
		}
		if ferr := h.Dedup.Forget(ctx, env.EventID); ferr != nil {
			h.Log.Warn("forget dedup claim", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return err
	}
	return nil
}

func (h *Handler) apply(ctx context.Context, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventPaymentAuthorized:
		p, err := kafkax.UnwrapPayload[orders.PaymentAuthorizedPayload](env.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedPayload, err)
		}
		if _, err := h.Orders.MarkOrderPaid(ctx, p.OrderID); err != nil {
			return err
		}
		h.Log.Info("payment authorized", zap.String("order_id", p.OrderID), zap.String("payment_ref", p.PaymentRef))
	case orders.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](env.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedPayload, err)
		}
		if _, err := h.Orders.MarkOrderPaymentFailed(ctx, p.OrderID); err != nil {
			return err
		}
		h.Log.Info("payment failed", zap.String("order_id", p.OrderID), zap.String("reason", p.Reason))
	}
	return nil
}
