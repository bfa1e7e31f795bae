package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studioslot/internal/auth"
	"studioslot/internal/booking"
	"studioslot/internal/plan"
	"studioslot/internal/schedule"
)

func TestFlexiblePlanLifecycleIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbx := setupTestDB(t)
	defer dbx.Close()
	cleanDatabase(t, dbx)

	s := newStack(dbx)
	ctx := context.Background()
	courseID := createTestCourse(t, dbx, "Barre Basics")
	planTypeID := createFlexiblePlanType(t, dbx, 2)
	actor := auth.Actor{ID: 501, Role: auth.RoleClient}

	purchase, err := s.plans.PurchaseFlexible(ctx, 501, planTypeID)
	if err != nil {
		t.Fatalf("failed to purchase flexible plan: %v", err)
	}
	if purchase.RemainingClasses != 2 {
		t.Fatalf("expected 2 remaining classes, got %d", purchase.RemainingClasses)
	}
	if purchase.ExpiresAt == nil {
		t.Fatal("expected flexible purchase to carry an expiry")
	}

	start := time.Now().Add(48 * time.Hour)
	firstSession := createTestSession(t, dbx, courseID, start, 10)
	secondSession := createTestSession(t, dbx, courseID, start.Add(24*time.Hour), 10)
	thirdSession := createTestSession(t, dbx, courseID, start.Add(48*time.Hour), 10)

	first, err := s.bookings.Reserve(ctx, booking.ReserveRequest{SessionID: firstSession, ClientID: 501}, actor)
	if err != nil {
		t.Fatalf("first reservation failed: %v", err)
	}
	if _, err := s.bookings.Reserve(ctx, booking.ReserveRequest{SessionID: secondSession, ClientID: 501}, actor); err != nil {
		t.Fatalf("second reservation failed: %v", err)
	}
	if got := remainingClasses(t, dbx, purchase.ID); got != 0 {
		t.Fatalf("expected plan debited to 0, got %d", got)
	}

	// Exhausted plan blocks the third reservation.
	_, err = s.bookings.Reserve(ctx, booking.ReserveRequest{SessionID: thirdSession, ClientID: 501}, actor)
	if !errors.Is(err, plan.ErrNoActivePlan) && !errors.Is(err, plan.ErrPlanExhausted) {
		t.Fatalf("expected exhausted-plan error, got %v", err)
	}

	// Cancelling refunds a credit and the blocked reservation goes
	// through.
	if err := s.bookings.Cancel(ctx, first.Booking.ID, actor); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got := remainingClasses(t, dbx, purchase.ID); got != 1 {
		t.Fatalf("expected 1 remaining class after refund, got %d", got)
	}
	if _, err := s.bookings.Reserve(ctx, booking.ReserveRequest{SessionID: thirdSession, ClientID: 501}, actor); err != nil {
		t.Fatalf("reservation after refund failed: %v", err)
	}

	// The usage ledger records every movement: two debits, one credit,
	// one more debit.
	if n := countRows(t, dbx, `SELECT COUNT(*) FROM plan_usages WHERE plan_purchase_id = $1 AND credit_delta = -1`, purchase.ID); n != 3 {
		t.Errorf("expected 3 debit rows, got %d", n)
	}
	if n := countRows(t, dbx, `SELECT COUNT(*) FROM plan_usages WHERE plan_purchase_id = $1 AND credit_delta = 1`, purchase.ID); n != 1 {
		t.Errorf("expected 1 credit row, got %d", n)
	}
}

func TestFixedPurchaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbx := setupTestDB(t)
	defer dbx.Close()
	cleanDatabase(t, dbx)

	s := newStack(dbx)
	ctx := context.Background()
	courseID := createTestCourse(t, dbx, "Strength Cycle")
	start := time.Now().Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		createTestSession(t, dbx, courseID, start.Add(time.Duration(i)*7*24*time.Hour), 10)
	}

	t.Run("books one seat per upcoming session", func(t *testing.T) {
		planTypeID := createFixedPlanType(t, dbx, 3)

		resp, err := s.plans.PurchaseFixed(ctx, 601, planTypeID, courseID, time.Now())
		if err != nil {
			t.Fatalf("fixed purchase failed: %v", err)
		}
		if len(resp.Bookings) != 3 {
			t.Fatalf("expected 3 scheduled bookings, got %d", len(resp.Bookings))
		}
		for _, b := range resp.Bookings {
			if b.TicketToken == "" {
				t.Errorf("booking %d missing ticket token", b.BookingID)
			}
		}

		if n := countRows(t, dbx, `SELECT COUNT(*) FROM bookings WHERE client_id = 601 AND status = 'confirmed'`); n != 3 {
			t.Errorf("expected 3 confirmed bookings, got %d", n)
		}
		if n := countRows(t, dbx, `SELECT COUNT(*) FROM plan_usages WHERE plan_purchase_id = $1`, resp.PlanPurchaseID); n != 3 {
			t.Errorf("expected 3 usage rows, got %d", n)
		}
		if got := remainingClasses(t, dbx, resp.PlanPurchaseID); got != 0 {
			t.Errorf("fixed purchase must start fully consumed, got %d remaining", got)
		}
	})

	t.Run("leaves nothing behind when the course has too few sessions", func(t *testing.T) {
		planTypeID := createFixedPlanType(t, dbx, 5)

		_, err := s.plans.PurchaseFixed(ctx, 602, planTypeID, courseID, time.Now())
		if !errors.Is(err, schedule.ErrInsufficientSessions) {
			t.Fatalf("expected insufficient-sessions error, got %v", err)
		}

		if n := countRows(t, dbx, `SELECT COUNT(*) FROM plan_purchases WHERE client_id = 602`); n != 0 {
			t.Errorf("expected rolled-back purchase to leave no rows, got %d", n)
		}
		if n := countRows(t, dbx, `SELECT COUNT(*) FROM bookings WHERE client_id = 602`); n != 0 {
			t.Errorf("expected no bookings for failed purchase, got %d", n)
		}
	})
}
