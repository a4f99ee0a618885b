package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukaan-dev/backend-dukaan/internal/common"
	"github.com/dukaan-dev/backend-dukaan/internal/db"
)

// Handler exposes administrative coupon management endpoints.
type Handler struct {
	Q        *db.Queries
	Svc      *Service
	Validate *validator.Validate
}

type couponPayload struct {
	Code       string     `json:"code" validate:"required,max=64"`
	Kind       string     `json:"kind" validate:"omitempty,oneof=fixed percent"`
	Value      int64      `json:"value" validate:"gte=0"`
	PercentBps *int32     `json:"percentBps" validate:"omitempty,gt=0,lte=10000"`
	MinSpend   int64      `json:"minSpend" validate:"gte=0"`
	MaxUses    *int32     `json:"maxUses" validate:"omitempty,gte=0"`
	ValidFrom  *time.Time `json:"validFrom"`
	ValidTo    *time.Time `json:"validTo"`
	Active     *bool      `json:"active"`
}

type previewRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal int64  `json:"subtotal" validate:"gt=0"`
}

// Create inserts a new coupon rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon queries not configured", nil)
		return
	}
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validatePayload(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	params, err := buildCouponParams(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	record, err := h.Q.CreateCoupon(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toView(record)})
}

// Update mutates an existing coupon identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon queries not configured", nil)
		return
	}
	code := NormalizeCode(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = code
	if err := h.validatePayload(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	params, err := buildCouponParams(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	record, err := h.Q.UpdateCoupon(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(record)})
}

// List returns a page of coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon queries not configured", nil)
		return
	}
	limit := int32(common.AtoiDefault(r.URL.Query().Get("limit"), 20))
	offset := int32(common.AtoiDefault(r.URL.Query().Get("offset"), 0))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	records, err := h.Q.ListCoupons(r.Context(), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	views := make([]couponView, 0, len(records))
	for _, record := range records {
		views = append(views, toView(record))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Preview returns the simulated discount for a coupon without mutating state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	result, err := h.Svc.Validate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		status, code := RejectionStatus(err)
		common.JSONError(w, status, code, err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// RejectionStatus maps a validation failure to an HTTP status and stable
// reason code the storefront can branch on.
func RejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "COUPON_NOT_FOUND"
	case errors.Is(err, ErrInactive):
		return http.StatusUnprocessableEntity, "COUPON_INACTIVE"
	case errors.Is(err, ErrNotYetValid):
		return http.StatusUnprocessableEntity, "COUPON_NOT_YET_VALID"
	case errors.Is(err, ErrExpired):
		return http.StatusUnprocessableEntity, "COUPON_EXPIRED"
	case errors.Is(err, ErrUsageLimitReached):
		return http.StatusUnprocessableEntity, "COUPON_USAGE_LIMIT_REACHED"
	case errors.Is(err, ErrBelowMinimum):
		return http.StatusUnprocessableEntity, "COUPON_BELOW_MINIMUM"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

type couponView struct {
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	Value      int64      `json:"value"`
	PercentBps *int32     `json:"percentBps,omitempty"`
	MinSpend   int64      `json:"minSpend"`
	MaxUses    *int32     `json:"maxUses,omitempty"`
	UsedCount  int32      `json:"usedCount"`
	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidTo    *time.Time `json:"validTo,omitempty"`
	Active     bool       `json:"active"`
}

func toView(c db.Coupon) couponView {
	view := couponView{
		Code:      c.Code,
		Kind:      c.Kind,
		Value:     c.Value,
		MinSpend:  c.MinSpend,
		UsedCount: c.UsedCount,
		Active:    c.Active,
	}
	if c.PercentBps.Valid {
		bps := c.PercentBps.Int32
		view.PercentBps = &bps
	}
	if c.MaxUses.Valid {
		limit := c.MaxUses.Int32
		view.MaxUses = &limit
	}
	if c.ValidFrom.Valid {
		from := c.ValidFrom.Time
		view.ValidFrom = &from
	}
	if c.ValidTo.Valid {
		to := c.ValidTo.Time
		view.ValidTo = &to
	}
	return view
}

func (h *Handler) validatePayload(payload couponPayload) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func buildCouponParams(payload couponPayload) (db.CreateCouponParams, error) {
	code := NormalizeCode(payload.Code)
	if code == "" {
		return db.CreateCouponParams{}, errors.New("code is required")
	}
	kind := strings.TrimSpace(payload.Kind)
	if kind == "" {
		kind = KindFixed
	}
	if kind == KindPercent && payload.PercentBps == nil {
		return db.CreateCouponParams{}, errors.New("percentBps is required for percent coupons")
	}
	percent := pgtype.Int4{}
	if payload.PercentBps != nil {
		percent = pgtype.Int4{Int32: *payload.PercentBps, Valid: true}
	}
	maxUses := pgtype.Int4{}
	if payload.MaxUses != nil {
		maxUses = pgtype.Int4{Int32: *payload.MaxUses, Valid: true}
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	return db.CreateCouponParams{
		Code:       code,
		Kind:       kind,
		Value:      payload.Value,
		PercentBps: percent,
		MinSpend:   payload.MinSpend,
		MaxUses:    maxUses,
		ValidFrom:  timeToNullable(payload.ValidFrom),
		ValidTo:    timeToNullable(payload.ValidTo),
		Active:     active,
	}, nil
}

func timeToNullable(v *time.Time) pgtype.Timestamptz {
	if v == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *v, Valid: true}
}
