package pricing

import (
	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

// Breakdown aggregates the computed order totals. All amounts are minor units
// in the breakdown currency and are persisted verbatim on the order record.
type Breakdown struct {
	Subtotal   Money  `json:"subtotal"`
	Discount   Money  `json:"discount"`
	Tax        Money  `json:"tax"`
	Shipping   Money  `json:"shipping"`
	Total      Money  `json:"total"`
	Currency   string `json:"currency"`
	CouponCode string `json:"couponCode,omitempty"`
}

// ComputeTotals combines priced lines into the final order breakdown.
//
// The discount must already be validated and clamped against this same
// subtotal by the coupon validator; it is consumed as-is to avoid
// double-counting rounding. Tax applies to the discounted base and only in the
// home region. Shipping is the region's flat fee, waived for an empty cart.
func ComputeTotals(lines []Line, rc region.Context, discount Money) Breakdown {
	var subtotal Money
	for _, ln := range lines {
		if ln.Qty <= 0 {
			continue
		}
		subtotal += ln.LineTotal
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	taxable := subtotal - discount
	if taxable < 0 {
		taxable = 0
	}
	var tax Money
	if rc.Home && rc.TaxBps > 0 {
		tax = (taxable * Money(rc.TaxBps)) / 10000
	}
	var shipping Money
	if subtotal > 0 {
		shipping = rc.ShippingFee
	}
	total := taxable + tax + shipping
	if total < 0 {
		total = 0
	}
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
		Currency: rc.Currency,
	}
}

// Consistent reports whether the breakdown satisfies the totals invariant.
// A violation indicates a logic defect and callers must hard-fail instead of
// persisting the order.
func (b Breakdown) Consistent() bool {
	return b.Total >= 0 && b.Total == b.Subtotal-b.Discount+b.Tax+b.Shipping
}
