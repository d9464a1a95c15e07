package fulfillment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/catalog"
	"github.com/ariefcatur/go-order-fulfillment/internal/discount"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
)

// CreateInventory opens the stock record of a product. Initial stock is
// audited as IMPORT.
func (s *Service) CreateInventory(ctx context.Context, productID string, onHand int) (inventory.Record, error) {
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return inventory.Record{}, err
	}
	var rec inventory.Record
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Repos) error {
		if err := tx.Stock().Create(ctx, productID, onHand); err != nil {
			return err
		}
		if onHand > 0 {
			if err := tx.Stock().AppendLog(ctx, inventory.StockLog{
				ProductID:      productID,
				ChangeQuantity: onHand,
				QuantityAfter:  onHand,
				Type:           inventory.LogImport,
				Note:           "initial stock",
			}); err != nil {
				return err
			}
		}
		var err error
		rec, err = tx.Stock().Get(ctx, productID)
		return err
	})
	if err != nil {
		return inventory.Record{}, err
	}
	s.log.Info("inventory created", zap.String("product_id", productID), zap.Int("on_hand", onHand))
	return rec, nil
}

// AdjustStock applies a manual correction. Positive deltas are receipts
// (IMPORT), negative ones write-offs (ADJUSTMENT) and may not cut into stock
// held by open orders.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int, note string) (inventory.Record, error) {
	if delta == 0 {
		return inventory.Record{}, ErrInvalidAdjustment
	}
	var rec inventory.Record
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Repos) error {
		var (
			after int
			typ   inventory.LogType
			err   error
		)
		if delta > 0 {
			after, err = tx.Stock().Increase(ctx, productID, delta)
			typ = inventory.LogImport
		} else {
			after, err = tx.Stock().Decrease(ctx, productID, -delta)
			typ = inventory.LogAdjustment
		}
		if err != nil {
			return err
		}
		if err := tx.Stock().AppendLog(ctx, inventory.StockLog{
			ProductID:      productID,
			ChangeQuantity: delta,
			QuantityAfter:  after,
			Type:           typ,
			Note:           note,
		}); err != nil {
			return err
		}
		rec, err = tx.Stock().Get(ctx, productID)
		return err
	})
	if err != nil {
		return inventory.Record{}, err
	}
	s.log.Info("stock adjusted",
		zap.String("product_id", productID),
		zap.Int("delta", delta),
		zap.Int("on_hand", rec.OnHand))
	return rec, nil
}

func (s *Service) GetInventory(ctx context.Context, productID string) (inventory.Record, error) {
	return s.store.Reader().Stock().Get(ctx, productID)
}

func (s *Service) ListStockLogs(ctx context.Context, productID string, limit int) ([]inventory.StockLog, error) {
	return s.store.Reader().Stock().ListLogs(ctx, productID, limit)
}

func (s *Service) CreateDiscount(ctx context.Context, d *discount.Discount) (*discount.Discount, error) {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Repos) error {
		return tx.Discounts().Create(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("discount created", zap.String("code", d.Code), zap.String("type", string(d.Type)))
	return d, nil
}

func (s *Service) GetDiscountByCode(ctx context.Context, code string) (*discount.Discount, error) {
	d, err := s.store.Reader().Discounts().FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	return d, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.catalog.ListProducts(ctx)
}
