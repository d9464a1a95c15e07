// Package pgtest starts a throwaway Postgres for repository tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

// NewPool runs a migrated postgres:16 container and returns a pool bound to it.
// The container is terminated when the test finishes. Skipped under -short.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn))

	pool, err := postgres.Connect(ctx, dsn, 32)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func SeedUser(t *testing.T, pool *pgxpool.Pool, id string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `INSERT INTO users(id, email) VALUES ($1, $2)`, id, id+"@example.com")
	require.NoError(t, err)
}

// SeedProduct inserts a product priced at price (a decimal string) and stocks it with onHand units.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, id, price string, onHand int) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `INSERT INTO products(id, sku, name, price) VALUES ($1, $2, $3, $4::numeric)`,
		id, "SKU-"+id, "Product "+id, price)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO inventory(product_id, on_hand, reserved) VALUES ($1, $2, 0)`, id, onHand)
	require.NoError(t, err)
}
