package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

type fakeOrders struct {
	paid, failed []string
	err          error
}

func (f *fakeOrders) MarkOrderPaid(_ context.Context, id string) (*orders.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.paid = append(f.paid, id)
	return &orders.Order{ID: id}, nil
}

func (f *fakeOrders) MarkOrderPaymentFailed(_ context.Context, id string) (*orders.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.failed = append(f.failed, id)
	return &orders.Order{ID: id}, nil
}

func newHandler(t *testing.T) (*Handler, *fakeOrders) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	fo := &fakeOrders{}
	return &Handler{Orders: fo, Dedup: redisx.NewDedup(rdb, "payments"), Log: zaptest.NewLogger(t)}, fo
}

func message(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	env, err := orders.NewEnvelope(eventType, "gateway", "o-1", payload)
	require.NoError(t, err)
	b, err := kafkax.EncodeEnvelope(env)
	require.NoError(t, err)
	return kafkago.Message{Topic: orders.TopicPaymentResult, Value: b}
}

func TestHandle_AppliesResultsOnce(t *testing.T) {
	ctx := context.Background()
	h, fo := newHandler(t)

	paid := message(t, orders.EventPaymentAuthorized, orders.PaymentAuthorizedPayload{OrderID: "o-1", PaymentRef: "ref", Amount: "10.00"})
	require.NoError(t, h.Handle(ctx, paid))
	require.NoError(t, h.Handle(ctx, paid))
	assert.Equal(t, []string{"o-1"}, fo.paid)

	failed := message(t, orders.EventPaymentFailed, orders.PaymentFailedPayload{OrderID: "o-2", Reason: "INSUFFICIENT_FUNDS"})
	require.NoError(t, h.Handle(ctx, failed))
	assert.Equal(t, []string{"o-2"}, fo.failed)
}

func TestHandle_IgnoresForeignAndGarbage(t *testing.T) {
	ctx := context.Background()
	h, fo := newHandler(t)

	require.NoError(t, h.Handle(ctx, kafkago.Message{Value: []byte("{not json")}))
	require.NoError(t, h.Handle(ctx, message(t, orders.EventOrderCreated, map[string]string{})))
	assert.Empty(t, fo.paid)
	assert.Empty(t, fo.failed)
}

func TestHandle_MalformedPayloadIsDropped(t *testing.T) {
	h, fo := newHandler(t)

	msg := message(t, orders.EventPaymentAuthorized, "not an object")
	require.NoError(t, h.Handle(context.Background(), msg))
	assert.Empty(t, fo.paid)
}

func TestHandle_RejectedTransitionIsCommitted(t *testing.T) {
	h, fo := newHandler(t)
	fo.err = &fulfillment.TransitionError{OrderID: "o-1", Reason: fulfillment.ReasonOrderCancelled}

	msg := message(t, orders.EventPaymentAuthorized, orders.PaymentAuthorizedPayload{OrderID: "o-1"})
	require.NoError(t, h.Handle(context.Background(), msg))
}

func TestHandle_TransientFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	h, fo := newHandler(t)
	fo.err = errors.New("db down")

	msg := message(t, orders.EventPaymentAuthorized, orders.PaymentAuthorizedPayload{OrderID: "o-1"})
	require.Error(t, h.Handle(ctx, msg))

	fo.err = nil
	require.NoError(t, h.Handle(ctx, msg))
	assert.Equal(t, []string{"o-1"}, fo.paid)
}
