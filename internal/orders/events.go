package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated      = "OrderCreated"
	EventOrderConfirmed    = "OrderConfirmed"
	EventOrderCancelled    = "OrderCancelled"
	EventOrderDelivered    = "OrderDelivered"
	EventPaymentAuthorized = "PaymentAuthorized"
	EventPaymentFailed     = "PaymentFailed"
)

// Envelope wraps every event on the wire. Version 1 is the only version.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

type ItemPrice struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

// OrderEventPayload is shared by the lifecycle notifications.
type OrderEventPayload struct {
	OrderID       string      `json:"order_id"`
	ExternalID    string      `json:"external_id,omitempty"`
	UserID        string      `json:"user_id"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Items         []ItemPrice `json:"items"`
	SubTotal      string      `json:"sub_total"`
	DiscountTotal string      `json:"discount_total"`
	ShippingFee   string      `json:"shipping_fee"`
	GrandTotal    string      `json:"grand_total"`
}

func NewOrderEventPayload(o *Order) OrderEventPayload {
	items := make([]ItemPrice, 0, len(o.items))
	for _, it := range o.items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, UnitPrice: it.UnitPrice.StringFixed(2)})
	}
	return OrderEventPayload{
		OrderID:       o.ID,
		ExternalID:    o.ExternalID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Items:         items,
		SubTotal:      o.subTotal.StringFixed(2),
		DiscountTotal: o.discountTotal.StringFixed(2),
		ShippingFee:   o.shippingFee.StringFixed(2),
		GrandTotal:    o.grandTotal.StringFixed(2),
	}
}

type PaymentAuthorizedPayload struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
	Amount     string `json:"amount"`
}

type PaymentFailedPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"` // e.g., INSUFFICIENT_FUNDS
}
