// Package catalog reads the product catalog and user directory that the
// fulfillment core consumes but does not own.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	OnHand    int             `json:"on_hand"`
	Reserved  int             `json:"reserved"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Repo struct{ DB postgres.DBTX }

func NewRepo(db postgres.DBTX) *Repo { return &Repo{DB: db} }

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT p.id, p.sku, p.name, p.price, COALESCE(i.on_hand, 0), COALESCE(i.reserved, 0), p.created_at, p.updated_at
		FROM products p LEFT JOIN inventory i ON i.product_id = p.id
		WHERE p.id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.OnHand, &p.Reserved, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.sku, p.name, p.price, COALESCE(i.on_hand, 0), COALESCE(i.reserved, 0), p.created_at, p.updated_at
		FROM products p LEFT JOIN inventory i ON i.product_id = p.id
		ORDER BY p.sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.OnHand, &p.Reserved, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) UserExists(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&ok)
	return ok, err
}
