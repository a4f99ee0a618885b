package region

// CurrencyINR is the home-market currency code.
const CurrencyINR = "INR"

// CurrencyUSD is the international currency code.
const CurrencyUSD = "USD"

// Context carries the per-request pricing context derived from region signals.
// It is computed once per request and never persisted.
type Context struct {
	Home        bool
	Currency    string
	TaxBps      int
	ShippingFee int64
}

// HomeContext builds the home-market context with the configured tax rate and free shipping.
func HomeContext(taxBps int) Context {
	return Context{Home: true, Currency: CurrencyINR, TaxBps: taxBps}
}

// IntlContext builds the international context: no tax, flat shipping fee.
func IntlContext(shippingFee int64) Context {
	return Context{Currency: CurrencyUSD, ShippingFee: shippingFee}
}

// Signals groups the request hints a resolver chain may consult.
type Signals struct {
	// Currency is an explicit client-declared currency code, when present.
	Currency string
	// IP is the request origin address used for geo lookups.
	IP string
	// AcceptLanguage is the raw Accept-Language header value.
	AcceptLanguage string
}
