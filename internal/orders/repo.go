package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

type Repo struct{ DB postgres.DBTX }

func NewRepo(db postgres.DBTX) *Repo { return &Repo{DB: db} }

const selectOrder = `
	SELECT id, COALESCE(external_id, ''), user_id, COALESCE(discount_id, ''), status, payment_status,
	       sub_total, discount_total, shipping_fee, grand_total, has_paid, shipping_address,
	       confirmed_at, cancelled_at, created_at, updated_at
	FROM orders`

// Insert writes the order row and its items. A second order with the same
// external id fails with ErrAlreadyExists.
func (r *Repo) Insert(ctx context.Context, o *Order) error {
	RecomputeTotals(o)
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, external_id, user_id, discount_id, status, payment_status,
		                   sub_total, discount_total, shipping_fee, grand_total, has_paid,
		                   shipping_address, confirmed_at, cancelled_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		o.ID, o.ExternalID, o.UserID, o.DiscountID, string(o.Status), string(o.PaymentStatus),
		o.subTotal, o.discountTotal, o.shippingFee, o.grandTotal, o.HasPaid,
		o.ShippingAddress, o.ConfirmedAt, o.CancelledAt,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("%w: external id %s", ErrAlreadyExists, o.ExternalID)
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.items {
		if _, err := r.DB.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i, it.ProductID, it.UnitPrice, it.Quantity, it.LineTotal(),
		); err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

// Update persists lifecycle and payment fields. Items are immutable once stored.
func (r *Repo) Update(ctx context.Context, o *Order) error {
	RecomputeTotals(o)
	err := r.DB.QueryRow(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, has_paid = $4,
		       sub_total = $5, discount_total = $6, shipping_fee = $7, grand_total = $8,
		       confirmed_at = $9, cancelled_at = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		o.ID, string(o.Status), string(o.PaymentStatus), o.HasPaid,
		o.subTotal, o.discountTotal, o.shippingFee, o.grandTotal,
		o.ConfirmedAt, o.CancelledAt,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, o.ID)
	}
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.ID, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE id = $1`, id)
}

// GetForUpdate locks the order row until the transaction ends, serialising
// concurrent transitions of the same order.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repo) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return r.getOne(ctx, selectOrder+` WHERE external_id = $1`, externalID)
}

func (r *Repo) getOne(ctx context.Context, query, arg string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	rows, err := r.DB.Query(ctx, selectOrder+` WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user: %w", err)
	}
	return r.collect(ctx, rows)
}

// ListPage returns page (0-based) of all orders, newest first, and the total count.
func (r *Repo) ListPage(ctx context.Context, page, size int) ([]*Order, int, error) {
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := r.DB.Query(ctx, selectOrder+` ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, size, page*size)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders page: %w", err)
	}
	out, err := r.collect(ctx, rows)
	return out, total, err
}

// CountByDiscountAndUser is how many orders userID has placed with discountID,
// cancelled ones included.
func (r *Repo) CountByDiscountAndUser(ctx context.Context, discountID, userID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE discount_id = $1 AND user_id = $2`,
		discountID, userID).Scan(&n)
	return n, err
}

func (r *Repo) collect(ctx context.Context, rows pgx.Rows) ([]*Order, error) {
	defer rows.Close()
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := r.loadItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) loadItems(ctx context.Context, list []*Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(list))
	ids := make([]string, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it Item
		if err := rows.Scan(&orderID, &it.ProductID, &it.UnitPrice, &it.Quantity); err != nil {
			return err
		}
		if o := byID[orderID]; o != nil {
			o.items = append(o.items, it)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status, payment string
	var sub, disc, ship, grand decimal.Decimal
	if err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.DiscountID, &status, &payment,
		&sub, &disc, &ship, &grand, &o.HasPaid, &o.ShippingAddress,
		&o.ConfirmedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payment)
	o.subTotal, o.discountTotal, o.shippingFee, o.grandTotal = sub, disc, ship, grand
	if o.ShippingAddress == nil {
		o.ShippingAddress = map[string]string{}
	}
	return &o, nil
}
