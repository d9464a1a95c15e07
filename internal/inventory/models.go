package inventory

import "time"

type Record struct {
	ProductID string    `json:"product_id"`
	OnHand    int       `json:"on_hand"`
	Reserved  int       `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Available is the quantity that can still be newly reserved.
func (r Record) Available() int { return r.OnHand - r.Reserved }

type LogType string

const (
	LogSale       LogType = "SALE"
	LogCancel     LogType = "CANCEL"
	LogImport     LogType = "IMPORT"
	LogAdjustment LogType = "ADJUSTMENT"
)

// StockLog is one audit row. ChangeQuantity is positive for stock in, negative for stock out.
type StockLog struct {
	ID             int64     `json:"id"`
	ProductID      string    `json:"product_id"`
	ChangeQuantity int       `json:"change_quantity"`
	QuantityAfter  int       `json:"quantity_after"`
	Type           LogType   `json:"type"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
