package region

import (
	"context"
	"errors"
	"testing"
)

type staticLookup struct {
	country string
	err     error
}

func (l staticLookup) Country(ctx context.Context, ip string) (string, error) {
	return l.country, l.err
}

func testChain(lookup CountryLookup) Chain {
	home := HomeContext(1800)
	intl := IntlContext(20)
	return Chain{
		Strategies: []Strategy{
			ExplicitCurrency(home, intl),
			GeoIP(lookup, "IN", home, intl),
			LanguageTag([]string{"hi", "en-in"}, home),
		},
		Default: home,
	}
}

func TestExplicitCurrencyWins(t *testing.T) {
	chain := testChain(staticLookup{country: "US"})
	rc := chain.Resolve(context.Background(), Signals{Currency: "inr", IP: "203.0.113.7"})
	if !rc.Home {
		t.Fatal("explicit INR must override the geo signal")
	}
	rc = chain.Resolve(context.Background(), Signals{Currency: "USD"})
	if rc.Home || rc.Currency != CurrencyUSD {
		t.Fatalf("expected international context, got %+v", rc)
	}
}

func TestUnknownExplicitCurrencyIsIgnored(t *testing.T) {
	chain := testChain(staticLookup{country: "DE"})
	rc := chain.Resolve(context.Background(), Signals{Currency: "EUR", IP: "203.0.113.7"})
	if rc.Home {
		t.Fatal("unsupported currency should fall through to the geo signal")
	}
}

func TestGeoLookupResolvesRegion(t *testing.T) {
	chain := testChain(staticLookup{country: "IN"})
	rc := chain.Resolve(context.Background(), Signals{IP: "203.0.113.7"})
	if !rc.Home {
		t.Fatal("IN lookup must resolve to home region")
	}
	chain = testChain(staticLookup{country: "GB"})
	rc = chain.Resolve(context.Background(), Signals{IP: "203.0.113.7"})
	if rc.Home {
		t.Fatal("non-home country must resolve to international")
	}
}

func TestGeoFailureDegradesToLanguage(t *testing.T) {
	chain := testChain(staticLookup{err: errors.New("lookup timed out")})
	rc := chain.Resolve(context.Background(), Signals{IP: "203.0.113.7", AcceptLanguage: "hi-IN,hi;q=0.9"})
	if !rc.Home {
		t.Fatal("geo failure must degrade to the language heuristic, not error")
	}
}

func TestLanguageHeuristicMatchesSubtags(t *testing.T) {
	chain := testChain(nil)
	rc := chain.Resolve(context.Background(), Signals{AcceptLanguage: "en-IN,en;q=0.8"})
	if !rc.Home {
		t.Fatal("en-IN should match the configured home tag")
	}
	rc = chain.Resolve(context.Background(), Signals{AcceptLanguage: "fr-FR,fr;q=0.8"})
	if !rc.Home {
		t.Fatal("a non-home language has no opinion and falls through to the default")
	}
}

func TestDefaultFallback(t *testing.T) {
	chain := testChain(staticLookup{err: errors.New("down")})
	rc := chain.Resolve(context.Background(), Signals{})
	if !rc.Home || rc.Currency != CurrencyINR {
		t.Fatalf("expected home default, got %+v", rc)
	}
	if rc.TaxBps != 1800 || rc.ShippingFee != 0 {
		t.Fatalf("home context carries tax and free shipping, got %+v", rc)
	}
}
