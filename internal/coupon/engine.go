package coupon

import (
	"errors"
	"strings"
	"time"
)

// Validation failures, in the order the checks run. The order is part of the
// contract so rejection messages stay deterministic.
var (
	// ErrNotFound is returned when no coupon exists for the normalized code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.New("coupon not active")
	// ErrNotYetValid is returned before the validity window opens.
	ErrNotYetValid = errors.New("coupon not yet valid")
	// ErrExpired is returned after the validity window closes.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the coupon has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrBelowMinimum indicates the subtotal did not meet the coupon minimum.
	ErrBelowMinimum = errors.New("order below coupon minimum")
)

// Discount kinds stored on the coupon record.
const (
	KindFixed   = "fixed"
	KindPercent = "percent"
)

// Rule captures the runtime constraints of a coupon.
type Rule struct {
	Code       string
	Kind       string
	Value      int64
	PercentBps *int32
	MinSpend   int64
	MaxUses    *int32
	UsedCount  int32
	ValidFrom  *time.Time
	ValidTo    *time.Time
	Active     bool
}

// NormalizeCode trims and upper-cases a client-supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate runs the eligibility checks in contract order, short-circuiting at
// the first failure. It is read-only: usage is recorded separately on commit.
func (r Rule) Validate(now time.Time, subtotal int64) error {
	if !r.Active {
		return ErrInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrNotYetValid
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if r.MaxUses != nil && *r.MaxUses >= 0 && r.UsedCount >= *r.MaxUses {
		return ErrUsageLimitReached
	}
	if subtotal < r.MinSpend {
		return ErrBelowMinimum
	}
	return nil
}

// Compute determines the discount for the subtotal, clamped to [0, subtotal]
// so a coupon can never drive the order negative.
func Compute(subtotal int64, r Rule) int64 {
	if subtotal <= 0 {
		return 0
	}
	discount := r.Value
	if strings.EqualFold(r.Kind, KindPercent) {
		if r.PercentBps == nil || *r.PercentBps <= 0 {
			return 0
		}
		discount = (subtotal * int64(*r.PercentBps)) / 10000
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}
