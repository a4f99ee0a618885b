package coupon

import (
	"errors"
	"testing"
	"time"
)

func activeRule() Rule {
	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	return Rule{Code: "SAVE10", Kind: KindFixed, Value: 100, Active: true, ValidFrom: &from, ValidTo: &to}
}

func TestValidateOrder(t *testing.T) {
	now := time.Now()
	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)

	cases := []struct {
		name string
		rule Rule
		want error
	}{
		{"inactive", Rule{Active: false, ValidFrom: &from, ValidTo: &to}, ErrInactive},
		{"not yet valid", func() Rule {
			r := activeRule()
			future := now.Add(time.Hour)
			r.ValidFrom = &future
			return r
		}(), ErrNotYetValid},
		{"expired", func() Rule {
			r := activeRule()
			past := now.Add(-time.Minute)
			r.ValidTo = &past
			return r
		}(), ErrExpired},
		{"usage limit", func() Rule {
			r := activeRule()
			limit := int32(5)
			r.MaxUses = &limit
			r.UsedCount = 5
			return r
		}(), ErrUsageLimitReached},
		{"below minimum", func() Rule {
			r := activeRule()
			r.MinSpend = 5000
			return r
		}(), ErrBelowMinimum},
	}
	for _, tc := range cases {
		if err := tc.rule.Validate(now, 1000); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidatePasses(t *testing.T) {
	rule := activeRule()
	rule.MinSpend = 500
	if err := rule.Validate(time.Now(), 1000); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestComputePercent(t *testing.T) {
	bps := int32(1000)
	rule := Rule{Kind: KindPercent, PercentBps: &bps}
	if discount := Compute(1000, rule); discount != 100 {
		t.Fatalf("expected 100 discount, got %d", discount)
	}
}

func TestComputeFixedClampedToSubtotal(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: 2000}
	if discount := Compute(1500, rule); discount != 1500 {
		t.Fatalf("expected discount clamped to 1500, got %d", discount)
	}
}

func TestComputeNeverNegative(t *testing.T) {
	rule := Rule{Kind: KindFixed, Value: -50}
	if discount := Compute(1000, rule); discount != 0 {
		t.Fatalf("expected 0, got %d", discount)
	}
	if discount := Compute(0, activeRule()); discount != 0 {
		t.Fatalf("expected 0 for empty subtotal, got %d", discount)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  save10 "); got != "SAVE10" {
		t.Fatalf("expected SAVE10, got %q", got)
	}
}
