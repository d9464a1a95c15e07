package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvariantViolation = errors.New("ledger invariant violation")
	ErrRecordNotFound     = errors.New("inventory record not found")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
)

// InsufficientStockError reports which product could not cover a reservation
// or write-off. Available is the quantity observed right after the failed update.
type InsufficientStockError struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InvariantViolationError means release or consume asked for more than was held.
// It always points at broken bookkeeping and must abort the transaction.
type InvariantViolationError struct {
	Op        string
	ProductID string
	Qty       int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s %d of product %s exceeds held stock", e.Op, e.Qty, e.ProductID)
}

func (e *InvariantViolationError) Is(target error) bool { return target == ErrInvariantViolation }
