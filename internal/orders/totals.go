package orders

import "github.com/shopspring/decimal"

// RecomputeTotals derives subTotal and grandTotal from the items and the
// discount and shipping inputs:
//
//	grandTotal = subTotal - discountTotal + shippingFee
//
// It is the only writer of grandTotal.
func RecomputeTotals(o *Order) {
	sub := decimal.Zero
	for _, it := range o.items {
		sub = sub.Add(it.LineTotal())
	}
	o.subTotal = sub.Round(2)
	o.discountTotal = o.discountTotal.Round(2)
	o.shippingFee = o.shippingFee.Round(2)
	o.grandTotal = o.subTotal.Sub(o.discountTotal).Add(o.shippingFee)
}
