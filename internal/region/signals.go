package region

import (
	"net/http"

	"github.com/dukaan-dev/backend-dukaan/internal/common"
)

// CurrencyHeader names the request header carrying an explicit currency choice.
const CurrencyHeader = "X-Currency"

// SignalsFromRequest extracts the region signals from an incoming request.
// A ?currency= query parameter overrides the header so links can pin a region.
func SignalsFromRequest(r *http.Request) Signals {
	if r == nil {
		return Signals{}
	}
	currency := r.Header.Get(CurrencyHeader)
	if q := r.URL.Query().Get("currency"); q != "" {
		currency = q
	}
	return Signals{
		Currency:       currency,
		IP:             common.ClientIP(r),
		AcceptLanguage: r.Header.Get("Accept-Language"),
	}
}
