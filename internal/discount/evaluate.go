package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluate validates d against one order and returns the discount amount,
// rounded half-up to 2 places. Checks run in a fixed order and the first
// failure wins. userID may be empty for guest checkouts, which skips the
// per-user cap; priorUses is how many orders userID already placed with d.
func Evaluate(d *Discount, subTotal, shippingFee decimal.Decimal, userID string, priorUses int, now time.Time) (decimal.Decimal, error) {
	reject := func(r Reason) (decimal.Decimal, error) {
		return decimal.Zero, &InvalidError{Code: d.Code, Reason: r}
	}

	switch {
	case !d.Active:
		return reject(ReasonInactive)
	case now.Before(d.StartAt):
		return reject(ReasonNotStarted)
	case now.After(d.EndAt):
		return reject(ReasonExpired)
	case d.MinOrderValue.Valid && subTotal.LessThan(d.MinOrderValue.Decimal):
		return reject(ReasonBelowMinimum)
	case d.MaxUsage != nil && d.Used >= *d.MaxUsage:
		return reject(ReasonUsageExhausted)
	case d.PerUserLimit != nil && userID != "" && priorUses >= *d.PerUserLimit:
		return reject(ReasonPerUserExhausted)
	}

	var amount decimal.Decimal
	switch d.Type {
	case TypePercent:
		amount = decimal.Min(subTotal.Mul(d.Value).Div(hundred), subTotal)
	case TypeFixedAmount:
		amount = decimal.Min(d.Value, subTotal)
	case TypeFreeShip:
		amount = shippingFee
	}
	// Round is half away from zero, which equals half-up for non-negative amounts.
	return amount.Round(2), nil
}
