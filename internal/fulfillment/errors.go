package fulfillment

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var (
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = catalog.ErrProductNotFound
	ErrInvalidAdjustment = errors.New("stock adjustment must be non-zero")
)

const (
	ReasonCannotConfirmCancelled = "CANNOT_CONFIRM_CANCELLED"
	ReasonAlreadyDelivered       = "ALREADY_DELIVERED"
	ReasonNotPending             = "NOT_PENDING"
	ReasonAlreadyCancelled       = "ALREADY_CANCELLED"
	ReasonCannotCancelDelivered  = "CANNOT_CANCEL_DELIVERED"
	ReasonCannotCancelShipping   = "CANNOT_CANCEL_SHIPPING"
	ReasonTerminalState          = "TERMINAL_STATE"
	ReasonNotAllowed             = "NOT_ALLOWED"
	ReasonPaymentSettled         = "PAYMENT_SETTLED"
	ReasonOrderCancelled         = "ORDER_CANCELLED"
)

// TransitionError carries the current and attempted state so callers can
// explain why an order did not move.
type TransitionError struct {
	OrderID string
	From    orders.Status
	To      orders.Status
	Reason  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s (%s)", e.OrderID, e.From, e.To, e.Reason)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func transitionErr(o *orders.Order, to orders.Status, reason string) error {
	return &TransitionError{OrderID: o.ID, From: o.Status, To: to, Reason: reason}
}
