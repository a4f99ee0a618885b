package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/dukaan-dev/backend-dukaan/internal/catalog"
	"github.com/dukaan-dev/backend-dukaan/internal/common"
	"github.com/dukaan-dev/backend-dukaan/internal/coupon"
	"github.com/dukaan-dev/backend-dukaan/internal/pricing"
	"github.com/dukaan-dev/backend-dukaan/internal/region"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      *Service
	Regions  region.Chain
	Validate *validator.Validate
}

// Quote handles POST /checkout/quote. It returns the breakdown checkout
// would charge without creating an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	rc := h.Regions.Resolve(r.Context(), region.SignalsFromRequest(r))
	breakdown, err := h.Svc.Quote(r.Context(), rc, in)
	if err != nil {
		status, code, message := createErrorResponse(err)
		common.JSONError(w, status, code, message, nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

// Create handles POST /checkout.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(in); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	rc := h.Regions.Resolve(r.Context(), region.SignalsFromRequest(r))
	out, err := h.Svc.Create(r.Context(), rc, in)
	if err != nil {
		status, code, message := createErrorResponse(err)
		common.JSONError(w, status, code, message, nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func createErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrEmptyOrder):
		return http.StatusBadRequest, "EMPTY_ORDER", "order has no lines"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found"
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "INVALID_QUANTITY", "quantity must be a positive integer"
	case errors.Is(err, pricing.ErrInvalidVariant):
		return http.StatusUnprocessableEntity, "INVALID_VARIANT", "unknown product variant"
	case isCouponRejection(err):
		status, code := coupon.RejectionStatus(err)
		return status, code, err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL", "failed to create order"
	}
}

func isCouponRejection(err error) bool {
	for _, sentinel := range []error{
		coupon.ErrNotFound, coupon.ErrInactive, coupon.ErrNotYetValid,
		coupon.ErrExpired, coupon.ErrUsageLimitReached, coupon.ErrBelowMinimum,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
