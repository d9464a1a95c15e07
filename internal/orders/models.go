package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrAlreadyExists   = errors.New("order already exists")
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidAmount   = errors.New("amount must not be negative")
	ErrInvalidStatus   = errors.New("invalid order status")
)

// Item is one order line. UnitPrice is the catalog price captured when the
// order was created and never follows later price changes.
type Item struct {
	ProductID string          `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root. It owns its items by value and refers to
// products, users and discounts by id only. Money fields are derived and can
// only change through the methods below, each of which calls RecomputeTotals.
type Order struct {
	ID              string
	ExternalID      string
	UserID          string
	DiscountID      string
	Status          Status
	PaymentStatus   PaymentStatus
	HasPaid         bool
	ShippingAddress map[string]string
	ConfirmedAt     *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	items         []Item
	subTotal      decimal.Decimal
	discountTotal decimal.Decimal
	shippingFee   decimal.Decimal
	grandTotal    decimal.Decimal
}

// New builds a PENDING, unpaid order. Items must be non-empty with positive quantities.
func New(id, userID string, items []Item, shippingFee decimal.Decimal) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: price of %s", ErrInvalidAmount, it.ProductID)
		}
	}
	if shippingFee.IsNegative() {
		return nil, fmt.Errorf("%w: shipping fee", ErrInvalidAmount)
	}
	o := &Order{
		ID:              id,
		UserID:          userID,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		ShippingAddress: map[string]string{},
		items:           append([]Item(nil), items...),
		shippingFee:     shippingFee,
	}
	RecomputeTotals(o)
	return o, nil
}

func (o *Order) Items() []Item { return append([]Item(nil), o.items...) }

func (o *Order) SubTotal() decimal.Decimal      { return o.subTotal }
func (o *Order) DiscountTotal() decimal.Decimal { return o.discountTotal }
func (o *Order) ShippingFee() decimal.Decimal   { return o.shippingFee }
func (o *Order) GrandTotal() decimal.Decimal    { return o.grandTotal }

// ApplyDiscount records the evaluated amount of discountID.
func (o *Order) ApplyDiscount(discountID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: discount", ErrInvalidAmount)
	}
	o.DiscountID = discountID
	o.discountTotal = amount
	RecomputeTotals(o)
	return nil
}

func (o *Order) MarkConfirmed(now time.Time) {
	o.Status = StatusWaitingForDelivery
	o.ConfirmedAt = &now
}

// MarkCancelled flips a settled payment to REFUNDED; moving the money back is
// the payment provider's job.
func (o *Order) MarkCancelled(now time.Time) {
	o.Status = StatusCancelled
	o.CancelledAt = &now
	if o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentRefunded
	}
}

// MarkDelivered settles payment regardless of method: cash on delivery is paid
// at the door.
func (o *Order) MarkDelivered(now time.Time) {
	o.Status = StatusDelivered
	o.MarkPaid()
	if o.ConfirmedAt == nil {
		o.ConfirmedAt = &now
	}
}

func (o *Order) MarkPaid() {
	o.HasPaid = true
	o.PaymentStatus = PaymentPaid
}

func (o *Order) MarkPaymentFailed() {
	o.PaymentStatus = PaymentFailed
}
