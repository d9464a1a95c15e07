package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres/pgtest"
)

func setupLedger(t *testing.T) (*Ledger, *pgxpool.Pool) {
	pool := pgtest.NewPool(t)
	return NewLedger(pool), pool
}

func TestLedger_ReserveReleaseConsume(t *testing.T) {
	l, pool := setupLedger(t)
	ctx := context.Background()
	pgtest.SeedProduct(t, pool, "p1", "10.00", 10)

	require.NoError(t, l.Reserve(ctx, "p1", 7))
	rec, err := l.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.OnHand)
	assert.Equal(t, 7, rec.Reserved)
	assert.Equal(t, 3, rec.Available())

	err = l.Reserve(ctx, "p1", 5)
	require.ErrorIs(t, err, ErrInsufficientStock)
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 3, short.Available)

	onHand, err := l.Consume(ctx, "p1", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, onHand)

	_, err = l.Release(ctx, "p1", 1)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	_, err = l.Consume(ctx, "p1", 1)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	rec, err = l.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.OnHand)
	assert.Equal(t, 0, rec.Reserved)
}

func TestLedger_UnknownProduct(t *testing.T) {
	l, _ := setupLedger(t)
	ctx := context.Background()

	assert.ErrorIs(t, l.Reserve(ctx, "missing", 1), ErrRecordNotFound)
	_, err := l.Increase(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestLedger_DecreaseKeepsReservedCovered(t *testing.T) {
	l, pool := setupLedger(t)
	ctx := context.Background()
	pgtest.SeedProduct(t, pool, "p1", "1.00", 10)
	require.NoError(t, l.Reserve(ctx, "p1", 6))

	_, err := l.Decrease(ctx, "p1", 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	onHand, err := l.Decrease(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, onHand)

	onHand, err = l.Increase(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, 10, onHand)
}

func TestLedger_ConcurrentReserveNeverOversells(t *testing.T) {
	l, pool := setupLedger(t)
	ctx := context.Background()
	const onHand, callers, qty = 25, 40, 2
	pgtest.SeedProduct(t, pool, "hot", "5.00", onHand)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
				return NewLedger(tx).Reserve(ctx, "hot", qty)
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(onHand/qty), ok.Load())
	assert.Equal(t, int32(callers-onHand/qty), short.Load())

	rec, err := l.Get(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, onHand, rec.OnHand)
	assert.Equal(t, (onHand/qty)*qty, rec.Reserved)
	assert.GreaterOrEqual(t, rec.OnHand, rec.Reserved)
}

func TestCoordinator_ReserveAllRollsBackPartialHolds(t *testing.T) {
	l, pool := setupLedger(t)
	ctx := context.Background()
	pgtest.SeedProduct(t, pool, "A", "1.00", 10)
	pgtest.SeedProduct(t, pool, "B", "1.00", 10)

	err := postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return NewCoordinator(NewLedger(tx)).ReserveAll(ctx, []Item{{"A", 5}, {"B", 999999}})
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	rec, err := l.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Reserved)
}

func TestCoordinator_OverlappingOrdersDoNotDeadlock(t *testing.T) {
	l, pool := setupLedger(t)
	ctx := context.Background()
	for _, id := range []string{"x", "y", "z"} {
		pgtest.SeedProduct(t, pool, id, "1.00", 1000)
	}

	orders := [][]Item{
		{{"x", 1}, {"y", 1}, {"z", 1}},
		{{"z", 1}, {"y", 1}, {"x", 1}},
	}
	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(items []Item) {
			defer wg.Done()
			errs <- postgres.WithTx(ctx, pool, func(tx pgx.Tx) error {
				return NewCoordinator(NewLedger(tx)).ReserveAll(ctx, items)
			})
		}(orders[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range []string{"x", "y", "z"} {
		rec, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 50, rec.Reserved, fmt.Sprintf("product %s", id))
	}
}

func TestLedger_StockLogs(t *testing.T) {
	l, pool := setupLedger(t)
	ctx := context.Background()
	pgtest.SeedProduct(t, pool, "p1", "1.00", 5)

	require.NoError(t, l.Reserve(ctx, "p1", 2))
	require.NoError(t, NewCoordinator(l).ConsumeAll(ctx, "order-9", []Item{{"p1", 2}}))

	logs, err := l.ListLogs(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, LogSale, logs[0].Type)
	assert.Equal(t, -2, logs[0].ChangeQuantity)
	assert.Equal(t, 3, logs[0].QuantityAfter)
	assert.Equal(t, "order-9", logs[0].ReferenceID)
}
