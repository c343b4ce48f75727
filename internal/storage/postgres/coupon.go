package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/pagination"
)

const (
	couponColumns = `id, code, discount_type, discount_value, max_discount, min_order_amount,
		expires_at, usage_limit, used_count, is_active, created_at, updated_at`

	createCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, max_discount, min_order_amount, expires_at, usage_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, used_count, created_at, updated_at`

	upsertCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, max_discount, min_order_amount, expires_at, usage_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			max_discount = EXCLUDED.max_discount,
			min_order_amount = EXCLUDED.min_order_amount,
			expires_at = EXCLUDED.expires_at,
			usage_limit = EXCLUDED.usage_limit,
			is_active = EXCLUDED.is_active,
			updated_at = now()`

	getCouponByIDSQL   = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`
	countCouponsSQL    = `SELECT count(*) FROM coupons`
	listCouponsSQL     = `SELECT ` + couponColumns + ` FROM coupons ORDER BY id DESC LIMIT $1 OFFSET $2`

	updateCouponSQL = `UPDATE coupons SET
		code = $2, discount_type = $3, discount_value = $4, max_discount = $5, min_order_amount = $6,
		expires_at = $7, usage_limit = $8, is_active = $9, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	insertOrderCouponSQL = `INSERT INTO order_coupons (order_id, coupon_id, discount_amount)
		SELECT id, $2, discount_amount FROM orders WHERE id = $1`
	incrementUsageSQL        = `UPDATE coupons SET used_count = used_count + 1, updated_at = now() WHERE id = $1`
	incrementUsageLimitedSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`
)

const couponCodeKey = "coupons_code_key"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db *DB
}

// NewCouponRepository returns a CouponRepository.
func NewCouponRepository(db *DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MaxDiscount, &c.MinOrderAmount,
		&c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// Create inserts c.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.db.conn(ctx).QueryRow(ctx, createCouponSQL,
		c.Code, c.DiscountType, c.DiscountValue, c.MaxDiscount, c.MinOrderAmount,
		c.ExpiresAt, c.UsageLimit, c.IsActive,
	).Scan(&c.ID, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err, couponCodeKey) {
		return coupon.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts the coupons in one batch, overwriting the rules of codes
// that already exist. Usage counters are preserved.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL,
			c.Code, c.DiscountType, c.DiscountValue, c.MaxDiscount, c.MinOrderAmount,
			c.ExpiresAt, c.UsageLimit, c.IsActive,
		)
	}
	results := r.db.conn(ctx).SendBatch(ctx, batch)
	for _, c := range coupons {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
		}
	}
	return results.Close()
}

func (r *CouponRepository) one(ctx context.Context, query string, arg any) (*coupon.Coupon, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %v: %w", arg, err)
	}
	c, err := collectOne(rows, scanCoupon, coupon.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %v: %w", arg, err)
	}
	return c, nil
}

// GetByID returns the coupon with the given id.
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	return r.one(ctx, getCouponByIDSQL, id)
}

// GetByCode matches code case-insensitively.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.one(ctx, getCouponByCodeSQL, code)
}

// List returns a page of coupons, newest first, and the total count.
func (r *CouponRepository) List(ctx context.Context, p pagination.Params) ([]coupon.Coupon, int, error) {
	p = p.Normalize()

	var total int
	if err := r.db.conn(ctx).QueryRow(ctx, countCouponsSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}
	rows, err := r.db.conn(ctx).Query(ctx, listCouponsSQL, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, total, nil
}

// Update overwrites the mutable columns of c.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	err := r.db.conn(ctx).QueryRow(ctx, updateCouponSQL,
		c.ID, c.Code, c.DiscountType, c.DiscountValue, c.MaxDiscount, c.MinOrderAmount,
		c.ExpiresAt, c.UsageLimit, c.IsActive,
	).Scan(&c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return coupon.ErrNotFound
	case isUniqueViolation(err, couponCodeKey):
		return coupon.ErrCodeTaken
	case err != nil:
		return fmt.Errorf("updating coupon %d: %w", c.ID, err)
	}
	return nil
}

// Delete removes the coupon unless an order references it.
func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteCouponSQL, id)
	if isForeignKeyViolation(err) {
		return coupon.ErrInUse
	}
	if err != nil {
		return fmt.Errorf("deleting coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// RecordRedemption links the coupon to the order with the order's discount
// and bumps the usage counter.
func (r *CouponRepository) RecordRedemption(ctx context.Context, couponID, orderID int64, enforceLimit bool) error {
	conn := r.db.conn(ctx)

	query := incrementUsageSQL
	if enforceLimit {
		query = incrementUsageLimitedSQL
	}
	tag, err := conn.Exec(ctx, query, couponID)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon %d: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		if enforceLimit {
			return coupon.ErrUsageLimitReached
		}
		return coupon.ErrNotFound
	}

	if _, err := conn.Exec(ctx, insertOrderCouponSQL, orderID, couponID); err != nil {
		return fmt.Errorf("linking coupon %d to order %d: %w", couponID, orderID, err)
	}
	return nil
}
