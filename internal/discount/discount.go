package discount

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercent     Type = "PERCENT"
	TypeFixedAmount Type = "FIXED_AMOUNT"
	TypeFreeShip    Type = "FREE_SHIP"
)

func (t Type) Valid() bool {
	switch t {
	case TypePercent, TypeFixedAmount, TypeFreeShip:
		return true
	}
	return false
}

type Discount struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	Type          Type                `json:"discount_type"`
	Value         decimal.Decimal     `json:"discount_value"`
	MinOrderValue decimal.NullDecimal `json:"min_order_value"`
	MaxUsage      *int                `json:"max_usage,omitempty"`
	PerUserLimit  *int                `json:"per_user_limit,omitempty"`
	Used          int                 `json:"used"`
	StartAt       time.Time           `json:"start_at"`
	EndAt         time.Time           `json:"end_at"`
	Active        bool                `json:"active"`
	CreatedAt     time.Time           `json:"created_at"`
}

// IsValid reports whether the offer can be applied at all at now, ignoring
// order-specific checks (minimum value, per-user cap).
func (d *Discount) IsValid(now time.Time) bool {
	return d.Active &&
		now.After(d.StartAt) && now.Before(d.EndAt) &&
		(d.MaxUsage == nil || d.Used < *d.MaxUsage)
}

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// NormalizeCode upper-cases and trims a customer supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks an administrator supplied definition before it is stored.
func (d *Discount) Validate() error {
	d.Code = NormalizeCode(d.Code)
	switch {
	case d.Code == "" || len(d.Code) > 50 || !codePattern.MatchString(d.Code):
		return fmt.Errorf("%w: code must match %s", ErrInvalidDefinition, codePattern)
	case !d.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDefinition, d.Type)
	case !d.Value.IsPositive():
		return fmt.Errorf("%w: value must be positive", ErrInvalidDefinition)
	case d.Type == TypePercent && d.Value.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: percent above 100", ErrInvalidDefinition)
	case d.MinOrderValue.Valid && d.MinOrderValue.Decimal.IsNegative():
		return fmt.Errorf("%w: negative minimum order value", ErrInvalidDefinition)
	case d.MaxUsage != nil && *d.MaxUsage < 0:
		return fmt.Errorf("%w: negative max usage", ErrInvalidDefinition)
	case d.PerUserLimit != nil && *d.PerUserLimit < 1:
		return fmt.Errorf("%w: per user limit must be at least 1", ErrInvalidDefinition)
	case !d.EndAt.After(d.StartAt):
		return fmt.Errorf("%w: end must be after start", ErrInvalidDefinition)
	}
	return nil
}
