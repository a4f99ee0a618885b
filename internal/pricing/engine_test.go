package pricing

import (
	"testing"

	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

func TestComputeTotalsHome(t *testing.T) {
	lines := []Line{{Qty: 2, UnitPrice: 5500, LineTotal: 11000}}
	b := ComputeTotals(lines, region.HomeContext(1800), 0)
	if b.Subtotal != 11000 {
		t.Fatalf("expected subtotal 11000, got %d", b.Subtotal)
	}
	if b.Tax != 1980 {
		t.Fatalf("expected tax 1980, got %d", b.Tax)
	}
	if b.Shipping != 0 {
		t.Fatalf("expected free home shipping, got %d", b.Shipping)
	}
	if b.Total != 12980 {
		t.Fatalf("expected total 12980, got %d", b.Total)
	}
	if !b.Consistent() {
		t.Fatal("breakdown violates totals invariant")
	}
}

func TestComputeTotalsIntl(t *testing.T) {
	lines := []Line{{Qty: 2, UnitPrice: 90, LineTotal: 180}}
	b := ComputeTotals(lines, region.IntlContext(20), 0)
	if b.Tax != 0 {
		t.Fatalf("expected no international tax, got %d", b.Tax)
	}
	if b.Shipping != 20 {
		t.Fatalf("expected flat shipping 20, got %d", b.Shipping)
	}
	if b.Total != 200 {
		t.Fatalf("expected total 200, got %d", b.Total)
	}
}

func TestComputeTotalsDiscountReducesTaxBase(t *testing.T) {
	lines := []Line{{Qty: 1, UnitPrice: 10000, LineTotal: 10000}}
	b := ComputeTotals(lines, region.HomeContext(1800), 1000)
	// Tax applies to the discounted base of 9000.
	if b.Tax != 1620 {
		t.Fatalf("expected tax 1620, got %d", b.Tax)
	}
	if b.Total != 10620 {
		t.Fatalf("expected total 10620, got %d", b.Total)
	}
}

func TestComputeTotalsClampsDiscount(t *testing.T) {
	lines := []Line{{Qty: 1, UnitPrice: 1500, LineTotal: 1500}}
	b := ComputeTotals(lines, region.HomeContext(1800), 2000)
	if b.Discount != 1500 {
		t.Fatalf("expected discount clamped to 1500, got %d", b.Discount)
	}
	if b.Total != 0 {
		t.Fatalf("expected zero total, got %d", b.Total)
	}
	if !b.Consistent() {
		t.Fatal("breakdown violates totals invariant")
	}
}

func TestComputeTotalsEmptyCartShipsFree(t *testing.T) {
	b := ComputeTotals(nil, region.IntlContext(20), 0)
	if b.Shipping != 0 || b.Total != 0 {
		t.Fatalf("expected zeroed breakdown, got shipping %d total %d", b.Shipping, b.Total)
	}
}
