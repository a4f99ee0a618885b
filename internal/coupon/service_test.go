package coupon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukaan-dev/backend-dukaan/internal/db"
)

type stubQueries struct {
	mu         sync.Mutex
	coupon     db.Coupon
	usages     map[string]db.CouponUsage
	increments int
}

func (s *stubQueries) GetCouponByCode(ctx context.Context, code string) (db.Coupon, error) {
	if s.coupon.Code == "" || s.coupon.Code != code {
		return db.Coupon{}, pgx.ErrNoRows
	}
	return s.coupon, nil
}

func (s *stubQueries) GetCouponUsageByOrder(ctx context.Context, arg db.GetCouponUsageByOrderParams) (db.CouponUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usage, ok := s.usages[uuidKey(arg.OrderID)]
	if !ok {
		return db.CouponUsage{}, pgx.ErrNoRows
	}
	return usage, nil
}

func (s *stubQueries) InsertCouponUsage(ctx context.Context, arg db.InsertCouponUsageParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usages == nil {
		s.usages = map[string]db.CouponUsage{}
	}
	s.usages[uuidKey(arg.OrderID)] = db.CouponUsage{CouponID: arg.CouponID, OrderID: arg.OrderID, Amount: arg.Amount}
	return nil
}

// IncrementCouponUsage mirrors the conditional UPDATE: the check and the
// bump happen under one lock, as they do inside Postgres.
func (s *stubQueries) IncrementCouponUsage(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coupon.MaxUses.Valid && s.coupon.UsedCount >= s.coupon.MaxUses.Int32 {
		return false, nil
	}
	s.coupon.UsedCount++
	s.increments++
	return true, nil
}

func uuidKey(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

func newCoupon() db.Coupon {
	return db.Coupon{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Code:       "SAVE10",
		Kind:       KindPercent,
		PercentBps: pgtype.Int4{Int32: 1000, Valid: true},
		MinSpend:   500,
		Active:     true,
		ValidFrom:  pgtype.Timestamptz{Time: time.Now().Add(-time.Hour), Valid: true},
		ValidTo:    pgtype.Timestamptz{Time: time.Now().Add(time.Hour), Valid: true},
	}
}

func pgUUID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func TestValidatePercent(t *testing.T) {
	svc := &Service{Q: &stubQueries{coupon: newCoupon()}}
	result, err := svc.Validate(context.Background(), "save10", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Discount != 100 {
		t.Fatalf("expected discount 100, got %d", result.Discount)
	}
	if result.Code != "SAVE10" {
		t.Fatalf("expected normalized code SAVE10, got %s", result.Code)
	}
}

func TestValidateBelowMinimumMentionsAmount(t *testing.T) {
	svc := &Service{Q: &stubQueries{coupon: newCoupon()}}
	_, err := svc.Validate(context.Background(), "SAVE10", 400)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Fatalf("rejection must carry the minimum amount, got %q", err.Error())
	}
}

func TestValidateNotFound(t *testing.T) {
	svc := &Service{Q: &stubQueries{}}
	_, err := svc.Validate(context.Background(), "NOPE", 1000)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateIsReadOnly(t *testing.T) {
	stub := &stubQueries{coupon: newCoupon()}
	svc := &Service{Q: stub}
	for i := 0; i < 3; i++ {
		if _, err := svc.Validate(context.Background(), "SAVE10", 1000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if stub.increments != 0 {
		t.Fatalf("validation must not consume uses, got %d increments", stub.increments)
	}
}

func TestCommitIdempotentPerOrder(t *testing.T) {
	stub := &stubQueries{coupon: newCoupon()}
	svc := &Service{Q: stub}
	orderID := pgUUID()
	for i := 0; i < 3; i++ {
		if err := svc.Commit(context.Background(), "SAVE10", orderID, pgUUID(), 100); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if stub.increments != 1 {
		t.Fatalf("expected exactly one increment, got %d", stub.increments)
	}
}

func TestCommitRacesNeverExceedCap(t *testing.T) {
	record := newCoupon()
	record.MaxUses = pgtype.Int4{Int32: 1, Valid: true}
	stub := &stubQueries{coupon: record}
	svc := &Service{Q: stub}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Commit(context.Background(), "SAVE10", pgUUID(), pgUUID(), 100)
		}()
	}
	wg.Wait()
	if stub.increments > 1 {
		t.Fatalf("usage cap breached: %d increments", stub.increments)
	}
}

func TestCommitAfterCapSurfacesError(t *testing.T) {
	record := newCoupon()
	record.MaxUses = pgtype.Int4{Int32: 1, Valid: true}
	record.UsedCount = 1
	svc := &Service{Q: &stubQueries{coupon: record}}
	err := svc.Commit(context.Background(), "SAVE10", pgUUID(), pgUUID(), 100)
	if !errors.Is(err, ErrUsageLimitReached) {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
}
