package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dukaan-dev/backend-dukaan/internal/catalog"
	"github.com/dukaan-dev/backend-dukaan/internal/coupon"
	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/obs"
	"github.com/dukaan-dev/backend-dukaan/internal/pricing"
	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

// ErrEmptyOrder is returned when the request carries no purchasable lines.
var ErrEmptyOrder = errors.New("checkout: order has no lines")

// ErrInconsistentTotals signals that the computed breakdown violated the
// totals invariant. The order is never persisted in that case.
var ErrInconsistentTotals = errors.New("checkout: totals breakdown is inconsistent")

// InputLine is one requested cart line. Size is a display attribute frozen
// onto the order item; unlike Variant it never changes the price.
type InputLine struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Variant   string `json:"variant"`
	Size      string `json:"size" validate:"omitempty,max=32"`
	Qty       int    `json:"qty" validate:"required,gte=1"`
}

// Input is the checkout request body.
type Input struct {
	Lines      []InputLine `json:"lines" validate:"required,min=1,dive"`
	CouponCode string      `json:"couponCode"`
	UserID     string      `json:"userId" validate:"omitempty,uuid4"`
}

// Output is the created order with its frozen totals.
type Output struct {
	OrderID   string            `json:"orderId"`
	Status    string            `json:"status"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// Service assembles an order: it prices every line for the resolved region,
// evaluates the coupon, and persists the order with its frozen breakdown in
// one transaction. Coupon usage is not consumed here; that happens when the
// payment confirmation arrives.
type Service struct {
	Q       *db.Queries
	Pool    *pgxpool.Pool
	Catalog *catalog.Service
	Coupons *coupon.Service
	Log     zerolog.Logger
}

type pricedLine struct {
	line    pricing.Line
	product db.Product
	size    string
}

type quote struct {
	priced     []pricedLine
	breakdown  pricing.Breakdown
	couponCode pgtype.Text
}

// Quote prices the request without persisting anything. The same path backs
// order creation, so a quote always matches what checkout would charge.
func (s *Service) Quote(ctx context.Context, rc region.Context, in Input) (pricing.Breakdown, error) {
	if s == nil || s.Catalog == nil {
		return pricing.Breakdown{}, errors.New("checkout service not configured")
	}
	q, err := s.buildQuote(ctx, rc, in)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return q.breakdown, nil
}

func (s *Service) buildQuote(ctx context.Context, rc region.Context, in Input) (quote, error) {
	if len(in.Lines) == 0 {
		return quote{}, ErrEmptyOrder
	}

	priced := make([]pricedLine, 0, len(in.Lines))
	lines := make([]pricing.Line, 0, len(in.Lines))
	for _, req := range in.Lines {
		productID, err := toUUID(req.ProductID)
		if err != nil {
			return quote{}, fmt.Errorf("invalid product id %q: %w", req.ProductID, err)
		}
		facts, err := s.Catalog.PricingFacts(ctx, productID)
		if err != nil {
			return quote{}, err
		}
		line, err := pricing.ResolveLine(facts.Facts(), req.Qty, req.Variant, rc)
		if err != nil {
			return quote{}, err
		}
		if line.NeedsIntlPricing {
			s.Log.Warn().
				Str("productId", req.ProductID).
				Int("qty", req.Qty).
				Msg("international order priced from home base, ladder not configured")
			if obs.IntlFallbackTotal != nil {
				obs.IntlFallbackTotal.Inc()
			}
		}
		priced = append(priced, pricedLine{line: line, product: facts.Product, size: req.Size})
		lines = append(lines, line)
	}

	var subtotal pricing.Money
	for _, ln := range lines {
		subtotal += ln.LineTotal
	}

	var discount pricing.Money
	var couponCode pgtype.Text
	if in.CouponCode != "" {
		if s.Coupons == nil {
			return quote{}, errors.New("coupon service not configured")
		}
		result, err := s.Coupons.Validate(ctx, in.CouponCode, subtotal)
		if err != nil {
			return quote{}, err
		}
		discount = result.Discount
		couponCode = pgtype.Text{String: result.Code, Valid: true}
	}

	breakdown := pricing.ComputeTotals(lines, rc, discount)
	breakdown.CouponCode = couponCode.String
	if !breakdown.Consistent() {
		s.Log.Error().
			Int64("subtotal", breakdown.Subtotal).
			Int64("discount", breakdown.Discount).
			Int64("tax", breakdown.Tax).
			Int64("shipping", breakdown.Shipping).
			Int64("total", breakdown.Total).
			Msg("refusing to use inconsistent totals")
		return quote{}, ErrInconsistentTotals
	}
	return quote{priced: priced, breakdown: breakdown, couponCode: couponCode}, nil
}

// Create prices and persists a new order in the given region context.
func (s *Service) Create(ctx context.Context, rc region.Context, in Input) (Output, error) {
	if s == nil || s.Q == nil || s.Pool == nil || s.Catalog == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	q, err := s.buildQuote(ctx, rc, in)
	if err != nil {
		return Output{}, err
	}
	breakdown := q.breakdown

	userID, err := optionalUUID(in.UserID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid user id: %w", err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Output{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	order, err := qtx.CreateOrder(ctx, db.CreateOrderParams{
		UserID:            userID,
		Status:            db.OrderStatusPendingPayment,
		Currency:          breakdown.Currency,
		PricingSubtotal:   breakdown.Subtotal,
		PricingDiscount:   breakdown.Discount,
		PricingTax:        breakdown.Tax,
		PricingShipping:   breakdown.Shipping,
		PricingTotal:      breakdown.Total,
		AppliedCouponCode: q.couponCode,
	})
	if err != nil {
		return Output{}, err
	}
	for _, pl := range q.priced {
		if err := qtx.CreateOrderItem(ctx, orderItemParams(order.ID, pl)); err != nil {
			return Output{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}

	s.Log.Info().
		Str("orderId", uuidString(order.ID)).
		Str("currency", breakdown.Currency).
		Int64("total", breakdown.Total).
		Msg("order created")
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(breakdown.Currency).Inc()
	}

	return Output{
		OrderID:   uuidString(order.ID),
		Status:    order.Status,
		Breakdown: breakdown,
	}, nil
}

func orderItemParams(orderID pgtype.UUID, pl pricedLine) db.CreateOrderItemParams {
	return db.CreateOrderItemParams{
		OrderID:     orderID,
		ProductID:   pl.product.ID,
		Title:       pl.product.Title,
		Slug:        pl.product.Slug,
		VariantName: optionalText(pl.line.Variant),
		SizeName:    optionalText(pl.size),
		Qty:         int32(pl.line.Qty),
		UnitPrice:   pl.line.UnitPrice,
		LineTotal:   pl.line.LineTotal,
	}
}

func toUUID(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func optionalUUID(s string) (pgtype.UUID, error) {
	if s == "" {
		return pgtype.UUID{}, nil
	}
	return toUUID(s)
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}
