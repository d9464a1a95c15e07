package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

// Ledger owns the per-product stock counters. Every mutation is one guarded
// UPDATE, so concurrent callers race on the row lock and the loser sees zero
// affected rows instead of a stale read.
type Ledger struct{ DB postgres.DBTX }

func NewLedger(db postgres.DBTX) *Ledger { return &Ledger{DB: db} }

func (l *Ledger) Create(ctx context.Context, productID string, onHand int) error {
	if onHand < 0 {
		return ErrInvalidQuantity
	}
	_, err := l.DB.Exec(ctx, `
		INSERT INTO inventory(product_id, on_hand, reserved)
		VALUES ($1, $2, 0)`, productID, onHand)
	if err != nil {
		return fmt.Errorf("create inventory %s: %w", productID, err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, productID string) (Record, error) {
	var r Record
	err := l.DB.QueryRow(ctx, `
		SELECT product_id, on_hand, reserved, updated_at
		FROM inventory WHERE product_id = $1`, productID).
		Scan(&r.ProductID, &r.OnHand, &r.Reserved, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, productID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get inventory %s: %w", productID, err)
	}
	return r, nil
}

// Reserve holds qty units iff on_hand - reserved >= qty.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE inventory SET reserved = reserved + $2, updated_at = NOW()
		WHERE product_id = $1 AND on_hand - reserved >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	rec, err := l.Get(ctx, productID)
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Requested: qty, Available: rec.Available()}
}

// Release drops a hold without shipping: reserved -= qty iff reserved >= qty.
// It returns on_hand, which a release never changes.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var onHand int
	err := l.DB.QueryRow(ctx, `
		UPDATE inventory SET reserved = reserved - $2, updated_at = NOW()
		WHERE product_id = $1 AND reserved >= $2
		RETURNING on_hand`, productID, qty).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := l.Get(ctx, productID); err != nil {
			return 0, err
		}
		return 0, &InvariantViolationError{Op: "release", ProductID: productID, Qty: qty}
	}
	if err != nil {
		return 0, fmt.Errorf("release %s: %w", productID, err)
	}
	return onHand, nil
}

// Consume turns a hold into a stock departure and returns on_hand afterwards.
func (l *Ledger) Consume(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var onHand int
	err := l.DB.QueryRow(ctx, `
		UPDATE inventory SET on_hand = on_hand - $2, reserved = reserved - $2, updated_at = NOW()
		WHERE product_id = $1 AND reserved >= $2 AND on_hand >= $2
		RETURNING on_hand`, productID, qty).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := l.Get(ctx, productID); err != nil {
			return 0, err
		}
		return 0, &InvariantViolationError{Op: "consume", ProductID: productID, Qty: qty}
	}
	if err != nil {
		return 0, fmt.Errorf("consume %s: %w", productID, err)
	}
	return onHand, nil
}

// Increase restocks outside any reservation and returns on_hand afterwards.
func (l *Ledger) Increase(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var onHand int
	err := l.DB.QueryRow(ctx, `
		UPDATE inventory SET on_hand = on_hand + $2, updated_at = NOW()
		WHERE product_id = $1
		RETURNING on_hand`, productID, qty).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrRecordNotFound, productID)
	}
	if err != nil {
		return 0, fmt.Errorf("increase %s: %w", productID, err)
	}
	return onHand, nil
}

// Decrease writes stock off; it never lets on_hand drop below reserved.
func (l *Ledger) Decrease(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var onHand int
	err := l.DB.QueryRow(ctx, `
		UPDATE inventory SET on_hand = on_hand - $2, updated_at = NOW()
		WHERE product_id = $1 AND on_hand - $2 >= reserved
		RETURNING on_hand`, productID, qty).Scan(&onHand)
	if errors.Is(err, pgx.ErrNoRows) {
		rec, err := l.Get(ctx, productID)
		if err != nil {
			return 0, err
		}
		return 0, &InsufficientStockError{ProductID: productID, Requested: qty, Available: rec.Available()}
	}
	if err != nil {
		return 0, fmt.Errorf("decrease %s: %w", productID, err)
	}
	return onHand, nil
}

func (l *Ledger) AppendLog(ctx context.Context, e StockLog) error {
	_, err := l.DB.Exec(ctx, `
		INSERT INTO stock_logs(product_id, change_quantity, quantity_after, type, reference_id, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ProductID, e.ChangeQuantity, e.QuantityAfter, string(e.Type), e.ReferenceID, e.Note)
	if err != nil {
		return fmt.Errorf("append stock log %s: %w", e.ProductID, err)
	}
	return nil
}

func (l *Ledger) ListLogs(ctx context.Context, productID string, limit int) ([]StockLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.DB.Query(ctx, `
		SELECT id, product_id, change_quantity, quantity_after, type, reference_id, note, created_at
		FROM stock_logs WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockLog
	for rows.Next() {
		var e StockLog
		var typ string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ChangeQuantity, &e.QuantityAfter, &typ, &e.ReferenceID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = LogType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
