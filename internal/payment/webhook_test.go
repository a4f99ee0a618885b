package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/payment"
)

type stubOrders struct {
	order     db.Order
	paidCalls int
}

func (s *stubOrders) GetOrderByID(_ context.Context, id pgtype.UUID) (db.Order, error) {
	if id != s.order.ID {
		return db.Order{}, pgx.ErrNoRows
	}
	return s.order, nil
}

func (s *stubOrders) MarkOrderPaid(_ context.Context, id pgtype.UUID) (db.Order, error) {
	if id != s.order.ID || s.order.Status != db.OrderStatusPendingPayment {
		return db.Order{}, pgx.ErrNoRows
	}
	s.paidCalls++
	s.order.Status = db.OrderStatusPaid
	return s.order, nil
}

type stubSettler struct {
	commits int
	err     error
}

func (s *stubSettler) Commit(_ context.Context, _ string, _, _ pgtype.UUID, _ int64) error {
	s.commits++
	return s.err
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newPendingOrder() db.Order {
	return db.Order{
		ID:                pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Status:            db.OrderStatusPendingPayment,
		Currency:          "INR",
		PricingSubtotal:   11000,
		PricingDiscount:   1000,
		PricingTax:        1800,
		PricingTotal:      11800,
		AppliedCouponCode: pgtype.Text{String: "SAVE10", Valid: true},
	}
}

func confirmBody(orderID pgtype.UUID, amount int64) string {
	return fmt.Sprintf(`{"orderId":%q,"status":"PAID","amount":%d}`, uuid.UUID(orderID.Bytes).String(), amount)
}

func post(t *testing.T, h payment.Webhook, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(payment.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookSettlesAndCommitsCoupon(t *testing.T) {
	orders := &stubOrders{order: newPendingOrder()}
	settler := &stubSettler{}
	h := payment.Webhook{Q: orders, Secret: "s3cret", Coupons: settler}

	body := confirmBody(orders.order.ID, 11800)
	rec := post(t, h, body, sign("s3cret", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, orders.paidCalls)
	require.Equal(t, 1, settler.commits)
	require.Equal(t, db.OrderStatusPaid, orders.order.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	orders := &stubOrders{order: newPendingOrder()}
	h := payment.Webhook{Q: orders, Secret: "s3cret"}

	body := confirmBody(orders.order.ID, 11800)
	rec := post(t, h, body, sign("wrong", body))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 0, orders.paidCalls)
}

func TestWebhookAmountMismatch(t *testing.T) {
	orders := &stubOrders{order: newPendingOrder()}
	h := payment.Webhook{Q: orders, Secret: "s3cret"}

	body := confirmBody(orders.order.ID, 999)
	rec := post(t, h, body, sign("s3cret", body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, orders.paidCalls)
}

func TestWebhookReplayedConfirmationIsAcknowledged(t *testing.T) {
	orders := &stubOrders{order: newPendingOrder()}
	settler := &stubSettler{}
	h := payment.Webhook{Q: orders, Secret: "s3cret", Coupons: settler}

	body := confirmBody(orders.order.ID, 11800)
	require.Equal(t, http.StatusOK, post(t, h, body, sign("s3cret", body)).Code)

	rec := post(t, h, body, sign("s3cret", body))
	require.Equal(t, http.StatusOK, rec.Code, "replay must acknowledge, not error")
	require.Equal(t, 1, orders.paidCalls, "order transitions to PAID exactly once")
	require.Equal(t, 1, settler.commits)
}

func TestWebhookReplayGuardShortCircuits(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	orders := &stubOrders{order: newPendingOrder()}
	h := payment.Webhook{Q: orders, Secret: "s3cret", Replay: client, ReplayTTL: time.Minute}

	body := confirmBody(orders.order.ID, 11800)
	require.Equal(t, http.StatusOK, post(t, h, body, sign("s3cret", body)).Code)
	require.Equal(t, http.StatusConflict, post(t, h, body, sign("s3cret", body)).Code)
	require.Equal(t, 1, orders.paidCalls)
}

func TestWebhookCouponCommitFailureDoesNotFailSettlement(t *testing.T) {
	orders := &stubOrders{order: newPendingOrder()}
	settler := &stubSettler{err: fmt.Errorf("usage cap exceeded")}
	h := payment.Webhook{Q: orders, Secret: "s3cret", Coupons: settler}

	body := confirmBody(orders.order.ID, 11800)
	rec := post(t, h, body, sign("s3cret", body))
	require.Equal(t, http.StatusOK, rec.Code, "paid order must stand even when coupon commit fails")
	require.Equal(t, db.OrderStatusPaid, orders.order.Status)
}
