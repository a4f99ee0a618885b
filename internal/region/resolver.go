package region

import (
	"context"
	"strings"
)

// Strategy inspects request signals and either resolves a region context or
// reports no opinion so the chain can continue.
type Strategy func(ctx context.Context, s Signals) (Context, bool)

// Chain resolves the region by trying strategies in precedence order. The
// first strategy with an opinion wins; when none has one the default applies.
// Resolution never fails: a broken strategy simply yields to the next one.
type Chain struct {
	Strategies []Strategy
	Default    Context
}

// Resolve runs the chain against the provided signals.
func (c Chain) Resolve(ctx context.Context, s Signals) Context {
	for _, strategy := range c.Strategies {
		if strategy == nil {
			continue
		}
		if rc, ok := strategy(ctx, s); ok {
			return rc
		}
	}
	return c.Default
}

// ExplicitCurrency honours a client-declared currency code when it matches a
// supported currency. Unknown values are ignored rather than rejected.
func ExplicitCurrency(home, intl Context) Strategy {
	return func(_ context.Context, s Signals) (Context, bool) {
		switch strings.ToUpper(strings.TrimSpace(s.Currency)) {
		case CurrencyINR:
			return home, true
		case CurrencyUSD:
			return intl, true
		default:
			return Context{}, false
		}
	}
}

// CountryLookup resolves an ISO country code for an IP address. Lookups must
// be timeout-bounded; any error means "no opinion".
type CountryLookup interface {
	Country(ctx context.Context, ip string) (string, error)
}

// GeoIP resolves the region from the request origin IP. A failed or empty
// lookup degrades silently to the next strategy.
func GeoIP(lookup CountryLookup, homeCountry string, home, intl Context) Strategy {
	homeCountry = strings.ToUpper(strings.TrimSpace(homeCountry))
	return func(ctx context.Context, s Signals) (Context, bool) {
		if lookup == nil || strings.TrimSpace(s.IP) == "" {
			return Context{}, false
		}
		country, err := lookup.Country(ctx, strings.TrimSpace(s.IP))
		if err != nil || country == "" {
			return Context{}, false
		}
		if strings.ToUpper(country) == homeCountry {
			return home, true
		}
		return intl, true
	}
}

// LanguageTag treats the presence of a home-region language tag in
// Accept-Language as a home-region hint. It never resolves international on
// its own: absence of the tag is no opinion, not evidence.
func LanguageTag(homeTags []string, home Context) Strategy {
	normalized := make([]string, 0, len(homeTags))
	for _, tag := range homeTags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return func(_ context.Context, s Signals) (Context, bool) {
		header := strings.ToLower(s.AcceptLanguage)
		if header == "" {
			return Context{}, false
		}
		for _, part := range strings.Split(header, ",") {
			tag := strings.TrimSpace(part)
			if idx := strings.Index(tag, ";"); idx >= 0 {
				tag = strings.TrimSpace(tag[:idx])
			}
			for _, candidate := range normalized {
				if tag == candidate || strings.HasPrefix(tag, candidate+"-") {
					return home, true
				}
			}
		}
		return Context{}, false
	}
}
