package stream

import (
	"errors"
	"testing"
)

func TestSeatTableCapacityDefaults(t *testing.T) {
	if got := NewSeatTable(0).Capacity(); got != 5 {
		t.Errorf("default capacity = %d, want 5", got)
	}
	if got := NewSeatTable(3).Capacity(); got != 3 {
		t.Errorf("capacity = %d, want 3", got)
	}
}

func TestAcceptAssignsLowestEmptySeat(t *testing.T) {
	seats := NewSeatTable(5)

	seats.Request("u1", "alice")
	seat, err := seats.Accept("u1")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if seat != 0 {
		t.Errorf("seat = %d, want 0", seat)
	}

	seats.Request("u2", "bob")
	if seat, _ = seats.Accept("u2"); seat != 1 {
		t.Errorf("seat = %d, want 1", seat)
	}

	// Freeing seat 0 makes it the next assignment again.
	if _, err := seats.ApplyKick(0); err != nil {
		t.Fatalf("ApplyKick() error = %v", err)
	}
	seats.Request("u3", "carol")
	if seat, _ = seats.Accept("u3"); seat != 0 {
		t.Errorf("seat after kick = %d, want 0", seat)
	}
}

func TestAcceptWithFullTable(t *testing.T) {
	seats := NewSeatTable(2)
	for i, user := range []string{"u1", "u2"} {
		seats.Request(user, user)
		if seat, err := seats.Accept(user); err != nil || seat != i {
			t.Fatalf("Accept(%s) = (%d, %v)", user, seat, err)
		}
	}

	seats.Request("u3", "late")
	if _, err := seats.Accept("u3"); !errors.Is(err, ErrNoSeatsAvailable) {
		t.Fatalf("Accept() error = %v, want ErrNoSeatsAvailable", err)
	}

	// The failed accept still consumed the pending request.
	if len(seats.Pending()) != 0 {
		t.Error("pending request survived failed accept")
	}
}

func TestAcceptWithoutPendingRequest(t *testing.T) {
	seats := NewSeatTable(5)
	if _, err := seats.Accept("ghost"); !errors.Is(err, ErrNoPendingRequest) {
		t.Fatalf("Accept() error = %v, want ErrNoPendingRequest", err)
	}
}

func TestRequestSupersedesEarlierRequest(t *testing.T) {
	seats := NewSeatTable(5)
	seats.Request("u1", "alice")
	seats.Request("u1", "alice (new)")

	pending := seats.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Username != "alice (new)" {
		t.Errorf("pending username = %q", pending[0].Username)
	}
}

func TestDenyRemovesPending(t *testing.T) {
	seats := NewSeatTable(5)
	seats.Request("u1", "alice")
	seats.Deny("u1")

	if len(seats.Pending()) != 0 {
		t.Error("denied request still pending")
	}
}

func TestApplyJoinDeduplicatesUser(t *testing.T) {
	seats := NewSeatTable(5)

	if err := seats.ApplyJoin(1, "u1", "alice"); err != nil {
		t.Fatalf("ApplyJoin() error = %v", err)
	}
	// A reordered push moves the same user to another seat.
	if err := seats.ApplyJoin(3, "u1", "alice"); err != nil {
		t.Fatalf("ApplyJoin() error = %v", err)
	}

	if got := seats.OccupiedCount(); got != 1 {
		t.Errorf("occupied = %d, want 1", got)
	}
	if got := seats.SeatOf("u1"); got != 3 {
		t.Errorf("SeatOf = %d, want 3", got)
	}

	// Re-applying the same push is a no-op.
	if err := seats.ApplyJoin(3, "u1", "alice"); err != nil {
		t.Fatalf("ApplyJoin() error = %v", err)
	}
	if got := seats.OccupiedCount(); got != 1 {
		t.Errorf("occupied after replay = %d, want 1", got)
	}
}

func TestApplyJoinClearsPending(t *testing.T) {
	seats := NewSeatTable(5)
	seats.Request("u1", "alice")

	if err := seats.ApplyJoin(2, "u1", "alice"); err != nil {
		t.Fatalf("ApplyJoin() error = %v", err)
	}
	if len(seats.Pending()) != 0 {
		t.Error("seated user still has a pending request")
	}
}

func TestApplyKickReturnsEvictedUser(t *testing.T) {
	seats := NewSeatTable(5)
	seats.ApplyJoin(2, "u1", "alice")

	userID, err := seats.ApplyKick(2)
	if err != nil {
		t.Fatalf("ApplyKick() error = %v", err)
	}
	if userID != "u1" {
		t.Errorf("evicted = %q, want u1", userID)
	}
	if seats.SeatOf("u1") != -1 {
		t.Error("kicked user still seated")
	}

	// Kicking an already empty seat is tolerated.
	if userID, err = seats.ApplyKick(2); err != nil || userID != "" {
		t.Errorf("ApplyKick(empty) = (%q, %v)", userID, err)
	}
}

func TestSeatBoundsChecked(t *testing.T) {
	seats := NewSeatTable(5)

	if err := seats.ApplyJoin(5, "u1", "alice"); !errors.Is(err, ErrSeatOutOfRange) {
		t.Errorf("ApplyJoin(5) error = %v, want ErrSeatOutOfRange", err)
	}
	if err := seats.ApplyJoin(-1, "u1", "alice"); !errors.Is(err, ErrSeatOutOfRange) {
		t.Errorf("ApplyJoin(-1) error = %v, want ErrSeatOutOfRange", err)
	}
	if _, err := seats.ApplyKick(7); !errors.Is(err, ErrSeatOutOfRange) {
		t.Errorf("ApplyKick(7) error = %v, want ErrSeatOutOfRange", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	seats := NewSeatTable(3)
	seats.ApplyJoin(0, "u1", "alice")

	snap := seats.Snapshot()
	snap[0].Username = "mutated"
	snap[1] = &Occupant{UserID: "x", Username: "x"}

	fresh := seats.Snapshot()
	if fresh[0].Username != "alice" {
		t.Error("snapshot mutation leaked into the table")
	}
	if fresh[1] != nil {
		t.Error("snapshot slice shares backing storage with the table")
	}
}
