package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studioslot/internal/auth"
	"studioslot/internal/booking"
)

// TestConcurrentReserveRespectsCapacity races many clients for the last
// free seats of a session. With capacity C and occupancy O, exactly C-O
// of the racers may win; every loser must see the capacity error and
// no client may lose a plan credit without a confirmed booking.
func TestConcurrentReserveRespectsCapacity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbx := setupTestDB(t)
	defer dbx.Close()
	cleanDatabase(t, dbx)

	s := newStack(dbx)
	courseID := createTestCourse(t, dbx, "HIIT Blast")
	planTypeID := createFlexiblePlanType(t, dbx, 10)
	sessionID := createTestSession(t, dbx, courseID, time.Now().Add(48*time.Hour), 5)

	// Fill three of the five seats up front.
	for clientID := int64(301); clientID <= 303; clientID++ {
		givePlan(t, dbx, clientID, planTypeID, 10)
		_, err := s.bookings.Reserve(context.Background(),
			booking.ReserveRequest{SessionID: sessionID, ClientID: clientID},
			auth.Actor{ID: clientID, Role: auth.RoleClient})
		if err != nil {
			t.Fatalf("failed to pre-book seat for client %d: %v", clientID, err)
		}
	}

	const racers = 10
	purchases := make(map[int64]int64, racers)
	for i := 0; i < racers; i++ {
		clientID := int64(310 + i)
		purchases[clientID] = givePlan(t, dbx, clientID, planTypeID, 10)
	}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		results = make(map[int64]error, racers)
	)

	for i := 0; i < racers; i++ {
		clientID := int64(310 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := s.bookings.Reserve(context.Background(),
				booking.ReserveRequest{SessionID: sessionID, ClientID: clientID},
				auth.Actor{ID: clientID, Role: auth.RoleClient})

			mu.Lock()
			results[clientID] = err
			mu.Unlock()
		}()
	}

	close(start)
	wg.Wait()

	winners := 0
	for clientID, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, booking.ErrCapacityExceeded):
		default:
			t.Errorf("client %d failed with unexpected error: %v", clientID, err)
		}
	}
	if winners != 2 {
		t.Errorf("expected exactly 2 winners for 2 free seats, got %d", winners)
	}

	confirmed := countRows(t, dbx, `SELECT COUNT(*) FROM bookings WHERE session_id = $1 AND status = 'confirmed'`, sessionID)
	if confirmed != 5 {
		t.Errorf("expected occupancy to land exactly at capacity 5, got %d", confirmed)
	}

	// Losers keep their credits; winners are debited exactly once.
	for clientID, purchaseID := range purchases {
		want := 10
		if results[clientID] == nil {
			want = 9
		}
		if got := remainingClasses(t, dbx, purchaseID); got != want {
			t.Errorf("client %d: expected %d remaining classes, got %d", clientID, want, got)
		}
	}
}

// TestConcurrentWaitlistJoinKeepsPositionsDense races clients joining
// the waitlist of a full session and checks positions come out 1..N
// with no gaps or duplicates.
func TestConcurrentWaitlistJoinKeepsPositionsDense(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbx := setupTestDB(t)
	defer dbx.Close()
	cleanDatabase(t, dbx)

	s := newStack(dbx)
	courseID := createTestCourse(t, dbx, "Reformer Pilates")
	planTypeID := createFlexiblePlanType(t, dbx, 10)
	sessionID := createTestSession(t, dbx, courseID, time.Now().Add(48*time.Hour), 1)

	givePlan(t, dbx, 401, planTypeID, 10)
	if _, err := s.bookings.Reserve(context.Background(),
		booking.ReserveRequest{SessionID: sessionID, ClientID: 401},
		auth.Actor{ID: 401, Role: auth.RoleClient}); err != nil {
		t.Fatalf("failed to fill the session: %v", err)
	}

	const joiners = 6
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < joiners; i++ {
		clientID := int64(410 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, _, err := s.waitlist.Join(context.Background(), sessionID, clientID); err != nil {
				t.Errorf("client %d failed to join waitlist: %v", clientID, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	entries, err := s.waitlist.ListPending(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to list pending entries: %v", err)
	}
	if len(entries) != joiners {
		t.Fatalf("expected %d pending entries, got %d", joiners, len(entries))
	}

	seen := make(map[int]bool, joiners)
	for _, e := range entries {
		if e.Position < 1 || e.Position > joiners {
			t.Errorf("position %d out of range 1..%d", e.Position, joiners)
		}
		if seen[e.Position] {
			t.Errorf("duplicate position %d", e.Position)
		}
		seen[e.Position] = true
	}
}
