package inventory

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// StockLedger is the subset of Ledger the coordinator drives. It must be bound
// to the caller's transaction.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) (int, error)
	Consume(ctx context.Context, productID string, qty int) (int, error)
	AppendLog(ctx context.Context, e StockLog) error
}

type Item struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// Normalize merges repeated products and sorts by ascending product id. Every
// bulk operation walks items in this order, which is what keeps two concurrent
// multi-item orders from waiting on each other's rows in a cycle.
func Normalize(items []Item) ([]Item, error) {
	merged := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: empty product id", ErrInvalidQuantity)
		}
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: product %s qty %d", ErrInvalidQuantity, it.ProductID, it.Qty)
		}
		merged[it.ProductID] += it.Qty
	}
	out := make([]Item, 0, len(merged))
	for id, qty := range merged {
		out = append(out, Item{ProductID: id, Qty: qty})
	}
	slices.SortFunc(out, func(a, b Item) int { return strings.Compare(a.ProductID, b.ProductID) })
	return out, nil
}

// Coordinator applies ledger primitives across all items of one order. It does
// not open transactions: the caller's transaction is the all-or-nothing
// boundary, and any error returned here must roll it back.
type Coordinator struct {
	Ledger StockLedger
}

func NewCoordinator(l StockLedger) *Coordinator { return &Coordinator{Ledger: l} }

// ReserveAll stops at the first product that cannot be covered and returns its
// *InsufficientStockError; holds already taken in this call are undone by the
// enclosing rollback.
func (c *Coordinator) ReserveAll(ctx context.Context, items []Item) error {
	sorted, err := Normalize(items)
	if err != nil {
		return err
	}
	for _, it := range sorted {
		if err := c.Ledger.Reserve(ctx, it.ProductID, it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll gives every hold of orderID back and audits it as CANCEL.
func (c *Coordinator) ReleaseAll(ctx context.Context, orderID string, items []Item) error {
	sorted, err := Normalize(items)
	if err != nil {
		return err
	}
	for _, it := range sorted {
		onHand, err := c.Ledger.Release(ctx, it.ProductID, it.Qty)
		if err != nil {
			return fmt.Errorf("release order %s: %w", orderID, err)
		}
		if err := c.Ledger.AppendLog(ctx, StockLog{
			ProductID:      it.ProductID,
			ChangeQuantity: 0,
			QuantityAfter:  onHand,
			Type:           LogCancel,
			ReferenceID:    orderID,
			Note:           fmt.Sprintf("released %d reserved", it.Qty),
		}); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeAll ships every hold of orderID and audits it as SALE.
func (c *Coordinator) ConsumeAll(ctx context.Context, orderID string, items []Item) error {
	sorted, err := Normalize(items)
	if err != nil {
		return err
	}
	for _, it := range sorted {
		onHand, err := c.Ledger.Consume(ctx, it.ProductID, it.Qty)
		if err != nil {
			return fmt.Errorf("consume order %s: %w", orderID, err)
		}
		if err := c.Ledger.AppendLog(ctx, StockLog{
			ProductID:      it.ProductID,
			ChangeQuantity: -it.Qty,
			QuantityAfter:  onHand,
			Type:           LogSale,
			ReferenceID:    orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}
