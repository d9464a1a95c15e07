package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
)

type Repo struct{ DB postgres.DBTX }

func NewRepo(db postgres.DBTX) *Repo { return &Repo{DB: db} }

const selectDiscount = `
	SELECT id, code, discount_type, discount_value, min_order_value, max_usage, per_user_limit,
	       used, start_at, end_at, active, created_at
	FROM discounts`

func (r *Repo) Create(ctx context.Context, d *Discount) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO discounts(id, code, discount_type, discount_value, min_order_value, max_usage,
		                      per_user_limit, used, start_at, end_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)
		RETURNING created_at`,
		d.ID, d.Code, string(d.Type), d.Value, d.MinOrderValue, d.MaxUsage,
		d.PerUserLimit, d.StartAt, d.EndAt, d.Active,
	).Scan(&d.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, d.Code)
	}
	if err != nil {
		return fmt.Errorf("insert discount: %w", err)
	}
	d.Used = 0
	return nil
}

func (r *Repo) FindByCode(ctx context.Context, code string) (*Discount, error) {
	return r.findByCode(ctx, selectDiscount+` WHERE code = $1`, code)
}

// FindByCodeForUpdate locks the discount row until the transaction ends, so
// checkouts with the same code count prior uses one at a time.
func (r *Repo) FindByCodeForUpdate(ctx context.Context, code string) (*Discount, error) {
	return r.findByCode(ctx, selectDiscount+` WHERE code = $1 FOR UPDATE`, code)
}

func (r *Repo) findByCode(ctx context.Context, query, code string) (*Discount, error) {
	code = NormalizeCode(code)
	d, err := scanDiscount(r.DB.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return d, err
}

// IncrementUsed counts one successful application. The cap is rechecked in
// the UPDATE so two checkouts racing for the last use cannot both win.
func (r *Repo) IncrementUsed(ctx context.Context, d *Discount) error {
	var used int
	err := r.DB.QueryRow(ctx, `
		UPDATE discounts SET used = used + 1
		WHERE id = $1 AND (max_usage IS NULL OR used < max_usage)
		RETURNING used`, d.ID).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return &InvalidError{Code: d.Code, Reason: ReasonUsageExhausted}
	}
	if err != nil {
		return fmt.Errorf("increment discount usage %s: %w", d.Code, err)
	}
	d.Used = used
	return nil
}

func scanDiscount(row pgx.Row) (*Discount, error) {
	var d Discount
	var typ string
	if err := row.Scan(&d.ID, &d.Code, &typ, &d.Value, &d.MinOrderValue, &d.MaxUsage, &d.PerUserLimit,
		&d.Used, &d.StartAt, &d.EndAt, &d.Active, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Type = Type(typ)
	return &d, nil
}
