package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/obs"
)

// Querier captures the database methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, code string) (db.Coupon, error)
	GetCouponUsageByOrder(ctx context.Context, arg db.GetCouponUsageByOrderParams) (db.CouponUsage, error)
	InsertCouponUsage(ctx context.Context, arg db.InsertCouponUsageParams) error
	IncrementCouponUsage(ctx context.Context, code string) (bool, error)
}

// Result describes a successful validation.
type Result struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
}

// Service evaluates coupon eligibility and settles usage after payment.
type Service struct {
	Q   Querier
	Now func() time.Time
}

// Validate checks a coupon against the order subtotal without mutating state.
// Calling it any number of times never changes used_count.
func (s *Service) Validate(ctx context.Context, code string, subtotal int64) (Result, error) {
	if s == nil || s.Q == nil {
		return Result{}, errors.New("coupon service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Result{}, ErrNotFound
	}
	record, err := s.Q.GetCouponByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			countValidation(ErrNotFound)
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	rule := RuleFromModel(record)
	if err := rule.Validate(s.now(), subtotal); err != nil {
		countValidation(err)
		if errors.Is(err, ErrBelowMinimum) {
			return Result{}, fmt.Errorf("minimum order amount is %d: %w", rule.MinSpend, ErrBelowMinimum)
		}
		return Result{}, err
	}
	countValidation(nil)
	return Result{Code: record.Code, Discount: Compute(subtotal, rule)}, nil
}

func countValidation(err error) {
	if obs.CouponValidationTotal == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrInactive):
		result = "inactive"
	case errors.Is(err, ErrNotYetValid):
		result = "not_yet_valid"
	case errors.Is(err, ErrExpired):
		result = "expired"
	case errors.Is(err, ErrUsageLimitReached):
		result = "usage_limit"
	case errors.Is(err, ErrBelowMinimum):
		result = "below_minimum"
	default:
		result = "error"
	}
	obs.CouponValidationTotal.WithLabelValues(result).Inc()
}

// Commit durably records that the coupon was consumed by a paid order. It is
// idempotent per order: a replayed confirmation finds the usage row and
// returns without touching used_count. The counter increment is conditional
// inside the database so concurrent commits cannot exceed the usage cap.
func (s *Service) Commit(ctx context.Context, code string, orderID, userID pgtype.UUID, amount int64) error {
	if s == nil || s.Q == nil {
		return errors.New("coupon service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" || !orderID.Valid {
		return nil
	}
	record, err := s.Q.GetCouponByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	_, err = s.Q.GetCouponUsageByOrder(ctx, db.GetCouponUsageByOrderParams{CouponID: record.ID, OrderID: orderID})
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	bumped, err := s.Q.IncrementCouponUsage(ctx, normalized)
	if err != nil {
		return err
	}
	if !bumped {
		return ErrUsageLimitReached
	}
	if amount < 0 {
		amount = 0
	}
	return s.Q.InsertCouponUsage(ctx, db.InsertCouponUsageParams{
		CouponID: record.ID,
		OrderID:  orderID,
		UserID:   userID,
		Amount:   amount,
	})
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RuleFromModel converts the stored coupon row into a Rule for evaluation.
func RuleFromModel(c db.Coupon) Rule {
	rule := Rule{
		Code:      c.Code,
		Kind:      c.Kind,
		Value:     c.Value,
		MinSpend:  c.MinSpend,
		UsedCount: c.UsedCount,
		Active:    c.Active,
	}
	if c.PercentBps.Valid {
		bps := c.PercentBps.Int32
		rule.PercentBps = &bps
	}
	if c.MaxUses.Valid {
		limit := c.MaxUses.Int32
		rule.MaxUses = &limit
	}
	if c.ValidFrom.Valid {
		rule.ValidFrom = &c.ValidFrom.Time
	}
	if c.ValidTo.Valid {
		rule.ValidTo = &c.ValidTo.Time
	}
	return rule
}
