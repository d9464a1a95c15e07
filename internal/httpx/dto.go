package httpx

import (
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type orderItemResp struct {
	ProductID string `json:"product_id"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type orderResp struct {
	ID              string            `json:"id"`
	ExternalID      string            `json:"external_id,omitempty"`
	UserID          string            `json:"user_id"`
	DiscountID      string            `json:"discount_id,omitempty"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	HasPaid         bool              `json:"has_paid"`
	Items           []orderItemResp   `json:"items"`
	SubTotal        string            `json:"sub_total"`
	DiscountTotal   string            `json:"discount_total"`
	ShippingFee     string            `json:"shipping_fee"`
	GrandTotal      string            `json:"grand_total"`
	ShippingAddress map[string]string `json:"shipping_address,omitempty"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toOrderResp(o *orders.Order) orderResp {
	lines := o.Items()
	items := make([]orderItemResp, 0, len(lines))
	for _, it := range lines {
		items = append(items, orderItemResp{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	return orderResp{
		ID:              o.ID,
		ExternalID:      o.ExternalID,
		UserID:          o.UserID,
		DiscountID:      o.DiscountID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		HasPaid:         o.HasPaid,
		Items:           items,
		SubTotal:        o.SubTotal().StringFixed(2),
		DiscountTotal:   o.DiscountTotal().StringFixed(2),
		ShippingFee:     o.ShippingFee().StringFixed(2),
		GrandTotal:      o.GrandTotal().StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		ConfirmedAt:     o.ConfirmedAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderList(list []*orders.Order) []orderResp {
	out := make([]orderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o))
	}
	return out
}

type pageResp struct {
	Orders []orderResp `json:"orders"`
	Page   int         `json:"page"`
	Size   int         `json:"size"`
	Total  int         `json:"total"`
}

func toPageResp(p fulfillment.Page) pageResp {
	return pageResp{Orders: toOrderList(p.Orders), Page: p.Page, Size: p.Size, Total: p.Total}
}
