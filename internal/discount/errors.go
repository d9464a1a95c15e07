package discount

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid           = errors.New("discount invalid")
	ErrNotFound          = errors.New("discount not found")
	ErrAlreadyExists     = errors.New("discount code already exists")
	ErrInvalidDefinition = errors.New("invalid discount definition")
)

// Reason is surfaced verbatim to the checkout UI.
type Reason string

const (
	ReasonInactive         Reason = "inactive"
	ReasonNotStarted       Reason = "not-started"
	ReasonExpired          Reason = "expired"
	ReasonBelowMinimum     Reason = "below-minimum"
	ReasonUsageExhausted   Reason = "usage-exhausted"
	ReasonPerUserExhausted Reason = "per-user-exhausted"
)

type InvalidError struct {
	Code   string
	Reason Reason
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("discount %s rejected: %s", e.Code, e.Reason)
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }
