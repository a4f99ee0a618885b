package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/dukaan-dev/backend-dukaan/internal/catalog"
	"github.com/dukaan-dev/backend-dukaan/internal/checkout"
	"github.com/dukaan-dev/backend-dukaan/internal/coupon"
	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

type fakeProducts struct {
	products map[pgtype.UUID]db.Product
	variants map[pgtype.UUID][]db.ProductVariant
}

func (f *fakeProducts) GetProductByID(_ context.Context, id pgtype.UUID) (db.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeProducts) GetProductBySlug(_ context.Context, slug string) (db.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeProducts) ListProducts(_ context.Context, _, _ int32) ([]db.Product, error) {
	out := make([]db.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProducts) ListVariantsByProduct(_ context.Context, id pgtype.UUID) ([]db.ProductVariant, error) {
	return f.variants[id], nil
}

type fakeCoupons struct {
	coupons map[string]db.Coupon
}

func (f *fakeCoupons) GetCouponByCode(_ context.Context, code string) (db.Coupon, error) {
	c, ok := f.coupons[code]
	if !ok {
		return db.Coupon{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeCoupons) GetCouponUsageByOrder(_ context.Context, _ db.GetCouponUsageByOrderParams) (db.CouponUsage, error) {
	return db.CouponUsage{}, pgx.ErrNoRows
}

func (f *fakeCoupons) InsertCouponUsage(_ context.Context, _ db.InsertCouponUsageParams) error {
	return nil
}

func (f *fakeCoupons) IncrementCouponUsage(_ context.Context, _ string) (bool, error) {
	return true, nil
}

type fixture struct {
	svc     *checkout.Service
	sareeID string
	teaID   string
	shawlID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sareeID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	teaID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	bareID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	products := &fakeProducts{
		products: map[pgtype.UUID]db.Product{
			sareeID: {ID: sareeID, Slug: "saree", Title: "Saree", BasePrice: 5500, Active: true},
			teaID:   {ID: teaID, Slug: "tea", Title: "Darjeeling Tea", BasePrice: 7500, IntlTierPrices: []int64{100, 180}, Active: true},
			bareID:  {ID: bareID, Slug: "shawl", Title: "Shawl", BasePrice: 9000, Active: true},
		},
		variants: map[pgtype.UUID][]db.ProductVariant{},
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Queries: products})
	require.NoError(t, err)

	coupons := &fakeCoupons{coupons: map[string]db.Coupon{
		"SAVE10": {
			Code:     "SAVE10",
			Kind:     coupon.KindFixed,
			Value:    1000,
			MinSpend: 500,
			Active:   true,
		},
		"BIGSPEND": {
			Code:     "BIGSPEND",
			Kind:     coupon.KindFixed,
			Value:    2000,
			MinSpend: 50000,
			Active:   true,
		},
	}}
	couponSvc := &coupon.Service{Q: coupons, Now: func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }}

	return &fixture{
		svc: &checkout.Service{
			Catalog: catalogSvc,
			Coupons: couponSvc,
		},
		sareeID: uuid.UUID(sareeID.Bytes).String(),
		teaID:   uuid.UUID(teaID.Bytes).String(),
		shawlID: uuid.UUID(bareID.Bytes).String(),
	}
}

func TestQuoteHomeMarket(t *testing.T) {
	f := newFixture(t)
	rc := region.HomeContext(1800)

	b, err := f.svc.Quote(context.Background(), rc, checkout.Input{
		Lines: []checkout.InputLine{{ProductID: f.sareeID, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(11000), b.Subtotal)
	require.Equal(t, int64(1980), b.Tax)
	require.Equal(t, int64(0), b.Shipping)
	require.Equal(t, int64(12980), b.Total)
	require.Equal(t, region.CurrencyINR, b.Currency)
}

func TestQuoteInternationalTier(t *testing.T) {
	f := newFixture(t)
	rc := region.IntlContext(20)

	b, err := f.svc.Quote(context.Background(), rc, checkout.Input{
		Lines: []checkout.InputLine{{ProductID: f.teaID, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(180), b.Subtotal)
	require.Equal(t, int64(0), b.Tax)
	require.Equal(t, int64(20), b.Shipping)
	require.Equal(t, int64(200), b.Total)
	require.Equal(t, region.CurrencyUSD, b.Currency)
}

func TestQuoteIntlFallsBackToBasePrice(t *testing.T) {
	f := newFixture(t)
	rc := region.IntlContext(20)

	b, err := f.svc.Quote(context.Background(), rc, checkout.Input{
		Lines: []checkout.InputLine{{ProductID: f.shawlID, Qty: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(9000), b.Subtotal, "no ladder configured, base price applies")
	require.Equal(t, int64(9020), b.Total)
}

func TestQuoteCouponReducesTaxBase(t *testing.T) {
	f := newFixture(t)
	rc := region.HomeContext(1800)

	b, err := f.svc.Quote(context.Background(), rc, checkout.Input{
		Lines:      []checkout.InputLine{{ProductID: f.sareeID, Qty: 2}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)
	require.Equal(t, int64(11000), b.Subtotal)
	require.Equal(t, int64(1000), b.Discount)
	require.Equal(t, int64(1800), b.Tax)
	require.Equal(t, int64(11800), b.Total)
	require.Equal(t, "SAVE10", b.CouponCode)
	require.True(t, b.Consistent())
}

func TestQuoteCouponBelowMinimum(t *testing.T) {
	f := newFixture(t)
	rc := region.HomeContext(1800)

	_, err := f.svc.Quote(context.Background(), rc, checkout.Input{
		Lines:      []checkout.InputLine{{ProductID: f.sareeID, Qty: 2}},
		CouponCode: "BIGSPEND",
	})
	require.ErrorIs(t, err, coupon.ErrBelowMinimum)
	require.Contains(t, err.Error(), "50000")
}

func TestQuoteUnknownProduct(t *testing.T) {
	f := newFixture(t)
	rc := region.HomeContext(1800)

	_, err := f.svc.Quote(context.Background(), rc, checkout.Input{
		Lines: []checkout.InputLine{{ProductID: uuid.NewString(), Qty: 1}},
	})
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestQuoteEmptyOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Quote(context.Background(), region.HomeContext(1800), checkout.Input{})
	require.ErrorIs(t, err, checkout.ErrEmptyOrder)
}

func TestQuoteHandlerRegionAndCouponMapping(t *testing.T) {
	f := newFixture(t)
	home := region.HomeContext(1800)
	intl := region.IntlContext(20)
	handler := &checkout.Handler{
		Svc: f.svc,
		Regions: region.Chain{
			Strategies: []region.Strategy{region.ExplicitCurrency(home, intl)},
			Default:    home,
		},
	}

	post := func(body string, currency string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(body))
		if currency != "" {
			req.Header.Set(region.CurrencyHeader, currency)
		}
		rec := httptest.NewRecorder()
		handler.Quote(rec, req)
		return rec
	}

	rec := post(`{"lines":[{"productId":"`+f.teaID+`","qty":2}]}`, "USD")
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Data struct {
			Total    int64  `json:"total"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	require.Equal(t, int64(200), ok.Data.Total)
	require.Equal(t, "USD", ok.Data.Currency)

	rec = post(`{"lines":[{"productId":"`+f.sareeID+`","qty":1}],"couponCode":"NOPE"}`, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var fail struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fail))
	require.Equal(t, "COUPON_NOT_FOUND", fail.Error.Code)
}
