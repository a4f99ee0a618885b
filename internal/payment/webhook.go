package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dukaan-dev/backend-dukaan/internal/common"
	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/obs"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Signature"

// Settler durably records coupon consumption once an order is paid.
type Settler interface {
	Commit(ctx context.Context, code string, orderID, userID pgtype.UUID, amount int64) error
}

// OrderStore captures the order queries settlement needs.
type OrderStore interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (db.Order, error)
	MarkOrderPaid(ctx context.Context, id pgtype.UUID) (db.Order, error)
}

type confirmation struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// Webhook handles payment confirmations. Settlement is idempotent: a replayed
// confirmation for an already paid order acknowledges without side effects.
type Webhook struct {
	Q         OrderStore
	Secret    string
	Replay    *redis.Client
	ReplayTTL time.Duration
	Coupons   Settler
	Log       zerolog.Logger
}

// Handle processes POST /payments/confirm.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if h.Secret != "" && !validSignature(h.Secret, body, r.Header.Get(SignatureHeader)) {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("pay:confirm:%s", common.Sha256Hex(body))
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !fresh {
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	var in confirmation
	if err := json.Unmarshal(body, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON payload", nil)
		return
	}
	if in.Status != "" && in.Status != "PAID" {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "IGNORED"}})
		return
	}
	orderID, err := parseOrderID(in.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}

	ctx := r.Context()
	order, err := h.Q.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "ORDER_FETCH_ERROR", err.Error(), nil)
		return
	}
	if in.Amount > 0 && in.Amount != order.PricingTotal {
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}

	paid, err := h.Q.MarkOrderPaid(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already settled or cancelled. Acknowledge so the provider stops retrying.
			common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{
				"orderId": in.OrderID,
				"status":  order.Status,
			}})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "SETTLEMENT_ERROR", err.Error(), nil)
		return
	}

	if paid.AppliedCouponCode.Valid && paid.AppliedCouponCode.String != "" && h.Coupons != nil {
		if err := h.Coupons.Commit(ctx, paid.AppliedCouponCode.String, paid.ID, paid.UserID, paid.PricingDiscount); err != nil {
			h.Log.Warn().
				Err(err).
				Str("orderId", in.OrderID).
				Str("coupon", paid.AppliedCouponCode.String).
				Msg("order paid but coupon commit failed")
			if obs.CouponCommitTotal != nil {
				obs.CouponCommitTotal.WithLabelValues("error").Inc()
			}
		} else if obs.CouponCommitTotal != nil {
			obs.CouponCommitTotal.WithLabelValues("ok").Inc()
		}
	}

	if obs.OrdersSettledTotal != nil {
		obs.OrdersSettledTotal.Inc()
	}
	h.Log.Info().Str("orderId", in.OrderID).Int64("amount", paid.PricingTotal).Msg("order settled")
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{
		"orderId": in.OrderID,
		"status":  paid.Status,
	}})
}

func validSignature(secret string, body []byte, got string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}

func parseOrderID(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}
