package pricing

import (
	"errors"

	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

// Money represents a monetary value stored in minor units (paise or cents).
type Money = int64

// MaxTier is the highest quantity the international price ladder may define.
const MaxTier = 5

// ErrInvalidQuantity is returned when the requested quantity is not a positive integer.
var ErrInvalidQuantity = errors.New("pricing: quantity must be a positive integer")

// ErrInvalidVariant is returned when the requested variant is not declared on the product.
var ErrInvalidVariant = errors.New("pricing: unknown product variant")

// Ladder is a sparse quantity-tier price table. Values are line totals for the
// full keyed quantity, not per-unit prices. Zero or absent entries mean the
// tier has no international price configured.
type Ladder map[int]Money

// VariantFacts overrides the product-level price facts for a named variant.
type VariantFacts struct {
	BasePrice Money
	IntlTiers Ladder
}

// Facts holds the read-only pricing inputs for a single product.
type Facts struct {
	BasePrice Money
	IntlTiers Ladder
	Variants  map[string]VariantFacts
}

// Line is the priced result for one cart line.
type Line struct {
	// UnitPrice is the display unit price. Under international tier pricing it
	// is LineTotal/qty rounded down and must not be used to re-derive totals.
	UnitPrice Money
	// LineTotal is the authoritative amount charged for the full quantity.
	LineTotal Money
	Currency  string
	Qty       int
	Variant   string
	// Tier records which ladder tier supplied the price, 0 when none applied.
	Tier int
	// NeedsIntlPricing flags an international sale priced off the home-currency
	// base because no ladder entry exists for the product.
	NeedsIntlPricing bool
}

// ResolveLine prices a single cart line in the resolved region.
func ResolveLine(f Facts, qty int, variant string, rc region.Context) (Line, error) {
	if qty < 1 {
		return Line{}, ErrInvalidQuantity
	}
	base := f.BasePrice
	tiers := f.IntlTiers
	if variant != "" {
		override, ok := f.Variants[variant]
		if !ok {
			return Line{}, ErrInvalidVariant
		}
		base = override.BasePrice
		tiers = override.IntlTiers
	}

	line := Line{Currency: rc.Currency, Qty: qty, Variant: variant}
	if rc.Home {
		line.UnitPrice = base
		line.LineTotal = base * Money(qty)
		return line, nil
	}

	total, tier, fallback := intlLineTotal(tiers, base, qty)
	line.LineTotal = total
	line.Tier = tier
	line.NeedsIntlPricing = fallback
	line.UnitPrice = total / Money(qty)
	return line, nil
}

// intlLineTotal computes the international line total for qty units. Policy:
// an exact tier wins; a quantity past the highest defined tier extrapolates
// the excess at that tier's per-unit rate; a gap inside the ladder falls back
// to the nearest lower tier plus the remainder at the tier-1 rate (or the
// found tier's per-unit rate when tier 1 is undefined); when no applicable
// tier exists the home base price applies and the fallback flag warns the
// caller that international pricing is not configured for this quantity.
func intlLineTotal(tiers Ladder, base Money, qty int) (total Money, tier int, fallback bool) {
	highest := 0
	for t, price := range tiers {
		if t >= 1 && t <= MaxTier && price > 0 && t > highest {
			highest = t
		}
	}
	if highest == 0 {
		return base * Money(qty), 0, true
	}
	if qty > highest {
		perUnit := tiers[highest] / Money(highest)
		return tiers[highest] + Money(qty-highest)*perUnit, highest, false
	}
	if price := tiers[qty]; price > 0 {
		return price, qty, false
	}
	for t := qty - 1; t >= 1; t-- {
		price := tiers[t]
		if price <= 0 {
			continue
		}
		remainder := Money(qty - t)
		if unit := tiers[1]; unit > 0 {
			return price + remainder*unit, t, false
		}
		return price + remainder*(price/Money(t)), t, false
	}
	// Only tiers above the requested quantity are defined.
	return base * Money(qty), 0, true
}
