package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertTotalInvariant(t *testing.T, o *Order) {
	t.Helper()
	want := o.SubTotal().Sub(o.DiscountTotal()).Add(o.ShippingFee())
	assert.True(t, o.GrandTotal().Equal(want), "grand %s != %s", o.GrandTotal(), want)
}

func TestNew_ComputesTotals(t *testing.T) {
	o, err := New("o1", "u1", []Item{
		{ProductID: "a", UnitPrice: dec("19.99"), Quantity: 3},
		{ProductID: "b", UnitPrice: dec("5.50"), Quantity: 1},
	}, dec("4.00"))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "65.47", o.SubTotal().StringFixed(2))
	assert.Equal(t, "69.47", o.GrandTotal().StringFixed(2))
	assertTotalInvariant(t, o)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("o1", "u1", nil, decimal.Zero)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = New("o1", "u1", []Item{{ProductID: "a", UnitPrice: dec("1"), Quantity: 0}}, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("o1", "u1", []Item{{ProductID: "a", UnitPrice: dec("1"), Quantity: 1}}, dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTotalInvariantHoldsAfterEveryMutation(t *testing.T) {
	o, err := New("o1", "u1", []Item{{ProductID: "a", UnitPrice: dec("100"), Quantity: 2}}, dec("10"))
	require.NoError(t, err)
	assertTotalInvariant(t, o)

	require.NoError(t, o.ApplyDiscount("d1", dec("20")))
	assertTotalInvariant(t, o)
	assert.Equal(t, "190.00", o.GrandTotal().StringFixed(2))

	assert.ErrorIs(t, o.ApplyDiscount("d1", dec("-1")), ErrInvalidAmount)
	assertTotalInvariant(t, o)
}

func TestItemsAreCopied(t *testing.T) {
	src := []Item{{ProductID: "a", UnitPrice: dec("1"), Quantity: 1}}
	o, err := New("o1", "u1", src, decimal.Zero)
	require.NoError(t, err)

	src[0].Quantity = 99
	items := o.Items()
	items[0].Quantity = 42
	assert.Equal(t, 1, o.Items()[0].Quantity)
	assert.Equal(t, "1.00", o.SubTotal().StringFixed(2))
}

func TestMarkCancelled_RefundsPaidOrder(t *testing.T) {
	o, err := New("o1", "u1", []Item{{ProductID: "a", UnitPrice: dec("1"), Quantity: 1}}, decimal.Zero)
	require.NoError(t, err)
	o.MarkPaid()

	o.MarkCancelled(time.Now())
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.NotNil(t, o.CancelledAt)
}

func TestMarkDelivered_SettlesPayment(t *testing.T) {
	o, err := New("o1", "u1", []Item{{ProductID: "a", UnitPrice: dec("1"), Quantity: 1}}, decimal.Zero)
	require.NoError(t, err)

	o.MarkDelivered(time.Now())
	assert.Equal(t, StatusDelivered, o.Status)
	assert.True(t, o.HasPaid)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.NotNil(t, o.ConfirmedAt)
}
