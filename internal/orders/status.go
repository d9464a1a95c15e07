package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending            Status = "PENDING"
	StatusWaitingForDelivery Status = "WAITING_FOR_DELIVERY"
	StatusConfirmed          Status = "CONFIRMED"
	StatusInTransit          Status = "IN_TRANSIT"
	StatusDelivered          Status = "DELIVERED"
	StatusCancelled          Status = "CANCELLED"
)

// validNext is the administrative status table. Leaving PENDING for any
// shipping state consumes the reservations first; see fulfillment.
var validNext = map[Status]map[Status]bool{
	StatusPending: {
		StatusWaitingForDelivery: true,
		StatusConfirmed:          true,
		StatusInTransit:          true,
		StatusDelivered:          true,
		StatusCancelled:          true,
	},
	StatusWaitingForDelivery: {StatusConfirmed: true, StatusInTransit: true, StatusDelivered: true},
	StatusConfirmed:          {StatusWaitingForDelivery: true, StatusInTransit: true, StatusDelivered: true},
	StatusInTransit:          {StatusDelivered: true},
	StatusDelivered:          {},
	StatusCancelled:          {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := validNext[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)
