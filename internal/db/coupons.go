package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Coupon is the persisted discount rule. Codes are stored upper-cased.
type Coupon struct {
	ID         pgtype.UUID
	Code       string
	Kind       string
	Value      int64
	PercentBps pgtype.Int4
	MinSpend   int64
	MaxUses    pgtype.Int4
	UsedCount  int32
	ValidFrom  pgtype.Timestamptz
	ValidTo    pgtype.Timestamptz
	Active     bool
	CreatedAt  pgtype.Timestamptz
}

// CouponUsage records a single committed redemption, keyed by order so a
// replayed payment confirmation cannot burn a second use.
type CouponUsage struct {
	CouponID  pgtype.UUID
	OrderID   pgtype.UUID
	UserID    pgtype.UUID
	Amount    int64
	CreatedAt pgtype.Timestamptz
}

const couponColumns = `id, code, kind, value, percent_bps, min_spend, max_uses, used_count, valid_from, valid_to, active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row scanner, c *Coupon) error {
	return row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.PercentBps, &c.MinSpend,
		&c.MaxUses, &c.UsedCount, &c.ValidFrom, &c.ValidTo, &c.Active, &c.CreatedAt)
}

const getCouponByCode = `
SELECT ` + couponColumns + `
FROM coupons
WHERE code = $1
`

// GetCouponByCode looks up a coupon by its normalized code.
func (q *Queries) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	var c Coupon
	err := scanCoupon(q.db.QueryRow(ctx, getCouponByCode, code), &c)
	return c, err
}

const listCoupons = `
SELECT ` + couponColumns + `
FROM coupons
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

// ListCoupons returns a page of coupons, newest first.
func (q *Queries) ListCoupons(ctx context.Context, limit, offset int32) ([]Coupon, error) {
	rows, err := q.db.Query(ctx, listCoupons, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		var c Coupon
		if err := scanCoupon(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCouponParams holds the writable coupon fields.
type CreateCouponParams struct {
	Code       string
	Kind       string
	Value      int64
	PercentBps pgtype.Int4
	MinSpend   int64
	MaxUses    pgtype.Int4
	ValidFrom  pgtype.Timestamptz
	ValidTo    pgtype.Timestamptz
	Active     bool
}

const createCoupon = `
INSERT INTO coupons (code, kind, value, percent_bps, min_spend, max_uses, valid_from, valid_to, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + couponColumns

// CreateCoupon inserts a new coupon rule.
func (q *Queries) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	var c Coupon
	err := scanCoupon(q.db.QueryRow(ctx, createCoupon,
		arg.Code, arg.Kind, arg.Value, arg.PercentBps, arg.MinSpend,
		arg.MaxUses, arg.ValidFrom, arg.ValidTo, arg.Active), &c)
	return c, err
}

const updateCoupon = `
UPDATE coupons
SET kind = $2, value = $3, percent_bps = $4, min_spend = $5, max_uses = $6,
    valid_from = $7, valid_to = $8, active = $9
WHERE code = $1
RETURNING ` + couponColumns

// UpdateCoupon mutates an existing coupon identified by code. used_count is
// deliberately not writable through this path.
func (q *Queries) UpdateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	var c Coupon
	err := scanCoupon(q.db.QueryRow(ctx, updateCoupon,
		arg.Code, arg.Kind, arg.Value, arg.PercentBps, arg.MinSpend,
		arg.MaxUses, arg.ValidFrom, arg.ValidTo, arg.Active), &c)
	return c, err
}

const incrementCouponUsage = `
UPDATE coupons
SET used_count = used_count + 1
WHERE code = $1
  AND (max_uses IS NULL OR used_count < max_uses)
`

// IncrementCouponUsage bumps used_count only while the usage cap allows it.
// The condition lives in the UPDATE itself so concurrent commits cannot race
// past the cap; it reports whether a row was updated.
func (q *Queries) IncrementCouponUsage(ctx context.Context, code string) (bool, error) {
	tag, err := q.db.Exec(ctx, incrementCouponUsage, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetCouponUsageByOrderParams identifies a redemption record.
type GetCouponUsageByOrderParams struct {
	CouponID pgtype.UUID
	OrderID  pgtype.UUID
}

const getCouponUsageByOrder = `
SELECT coupon_id, order_id, user_id, amount, created_at
FROM coupon_usages
WHERE coupon_id = $1 AND order_id = $2
`

// GetCouponUsageByOrder fetches the redemption row for an order, if any.
func (q *Queries) GetCouponUsageByOrder(ctx context.Context, arg GetCouponUsageByOrderParams) (CouponUsage, error) {
	row := q.db.QueryRow(ctx, getCouponUsageByOrder, arg.CouponID, arg.OrderID)
	var u CouponUsage
	err := row.Scan(&u.CouponID, &u.OrderID, &u.UserID, &u.Amount, &u.CreatedAt)
	return u, err
}

// InsertCouponUsageParams holds the fields for a redemption record.
type InsertCouponUsageParams struct {
	CouponID pgtype.UUID
	OrderID  pgtype.UUID
	UserID   pgtype.UUID
	Amount   int64
}

const insertCouponUsage = `
INSERT INTO coupon_usages (coupon_id, order_id, user_id, amount)
VALUES ($1, $2, $3, $4)
`

// InsertCouponUsage records a committed redemption.
func (q *Queries) InsertCouponUsage(ctx context.Context, arg InsertCouponUsageParams) error {
	_, err := q.db.Exec(ctx, insertCouponUsage, arg.CouponID, arg.OrderID, arg.UserID, arg.Amount)
	return err
}
