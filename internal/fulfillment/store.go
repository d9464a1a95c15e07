package fulfillment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-fulfillment/internal/discount"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

type StockLedger interface {
	inventory.StockLedger
	Create(ctx context.Context, productID string, onHand int) error
	Get(ctx context.Context, productID string) (inventory.Record, error)
	Increase(ctx context.Context, productID string, qty int) (int, error)
	Decrease(ctx context.Context, productID string, qty int) (int, error)
	ListLogs(ctx context.Context, productID string, limit int) ([]inventory.StockLog, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, o *orders.Order) error
	Update(ctx context.Context, o *orders.Order) error
	Get(ctx context.Context, id string) (*orders.Order, error)
	GetForUpdate(ctx context.Context, id string) (*orders.Order, error)
	GetByExternalID(ctx context.Context, externalID string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*orders.Order, error)
	ListPage(ctx context.Context, page, size int) ([]*orders.Order, int, error)
	CountByDiscountAndUser(ctx context.Context, discountID, userID string) (int, error)
}

type DiscountRepository interface {
	Create(ctx context.Context, d *discount.Discount) error
	FindByCode(ctx context.Context, code string) (*discount.Discount, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*discount.Discount, error)
	IncrementUsed(ctx context.Context, d *discount.Discount) error
}

// Repos groups the repositories bound to one connection or transaction.
type Repos interface {
	Stock() StockLedger
	Orders() OrderRepository
	Discounts() DiscountRepository
}

// Store hands out transaction-bound repositories. WithinTx commits only when
// fn returns nil; every error rolls back all of fn's writes.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
	Reader() Repos
}

type PgStore struct{ pool *pgxpool.Pool }

func NewPgStore(pool *pgxpool.Pool) *PgStore { return &PgStore{pool: pool} }

func (s *PgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error {
	return postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgRepos{db: tx})
	})
}

func (s *PgStore) Reader() Repos { return pgRepos{db: s.pool} }

type pgRepos struct{ db postgres.DBTX }

func (r pgRepos) Stock() StockLedger            { return inventory.NewLedger(r.db) }
func (r pgRepos) Orders() OrderRepository       { return orders.NewRepo(r.db) }
func (r pgRepos) Discounts() DiscountRepository { return discount.NewRepo(r.db) }
