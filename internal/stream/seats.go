package stream

import "sync"

// Occupant is a user holding a seat.
type Occupant struct {
	UserID   string
	Username string
}

// SeatRequest is one pending request for a seat.
type SeatRequest struct {
	UserID   string
	Username string
}

// SeatTable is the client-side projection of a room's fixed seat
// array plus its pending request set. The server is authoritative:
// occupancy mutations normally arrive as pushes and local mutations
// exist so the acting client reflects an acknowledged operation
// immediately. Re-applying the eventual push is a no-op.
//
// Invariants: occupied seats never exceed capacity, a user occupies
// at most one seat, and a user has at most one pending request.
type SeatTable struct {
	mu      sync.Mutex
	seats   []*Occupant
	pending map[string]SeatRequest
}

const defaultSeatCount = 5

// NewSeatTable creates a table with the given capacity; non-positive
// capacities fall back to the default of five.
func NewSeatTable(capacity int) *SeatTable {
	if capacity <= 0 {
		capacity = defaultSeatCount
	}
	return &SeatTable{
		seats:   make([]*Occupant, capacity),
		pending: make(map[string]SeatRequest),
	}
}

func (s *SeatTable) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats)
}

// Request records a pending seat request. A later request from the
// same user supersedes the earlier one; it never duplicates.
func (s *SeatTable) Request(userID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = SeatRequest{UserID: userID, Username: username}
}

// Deny removes a user's pending request.
func (s *SeatTable) Deny(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}

// Accept moves a pending requester into the lowest-index empty seat
// and returns that seat number. The pending entry is consumed whether
// or not a seat was free.
func (s *SeatTable) Accept(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[userID]
	if !ok {
		return 0, ErrNoPendingRequest
	}
	delete(s.pending, userID)

	if s.seatOfLocked(userID) >= 0 {
		return 0, ErrAlreadySeated
	}

	for i, seat := range s.seats {
		if seat == nil {
			s.seats[i] = &Occupant{UserID: req.UserID, Username: req.Username}
			return i, nil
		}
	}
	return 0, ErrNoSeatsAvailable
}

// ApplyJoin applies a user-joined-seat push. The user is removed from
// any other seat first, so re-applied and reordered pushes cannot
// duplicate an occupant.
func (s *SeatTable) ApplyJoin(seatNumber int, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seatNumber < 0 || seatNumber >= len(s.seats) {
		return ErrSeatOutOfRange
	}

	if prev := s.seatOfLocked(userID); prev >= 0 && prev != seatNumber {
		s.seats[prev] = nil
	}
	s.seats[seatNumber] = &Occupant{UserID: userID, Username: username}
	delete(s.pending, userID)
	return nil
}

// ApplyKick applies a user-kicked-from-seat push (or a locally
// acknowledged kick) and returns the user that held the seat.
func (s *SeatTable) ApplyKick(seatNumber int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seatNumber < 0 || seatNumber >= len(s.seats) {
		return "", ErrSeatOutOfRange
	}

	var userID string
	if s.seats[seatNumber] != nil {
		userID = s.seats[seatNumber].UserID
	}
	s.seats[seatNumber] = nil
	return userID, nil
}

// SeatOf returns the seat index a user occupies, or -1.
func (s *SeatTable) SeatOf(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatOfLocked(userID)
}

func (s *SeatTable) seatOfLocked(userID string) int {
	for i, seat := range s.seats {
		if seat != nil && seat.UserID == userID {
			return i
		}
	}
	return -1
}

// OccupiedCount returns the number of filled seats.
func (s *SeatTable) OccupiedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, seat := range s.seats {
		if seat != nil {
			n++
		}
	}
	return n
}

// Snapshot copies the seat array; empty seats are nil.
func (s *SeatTable) Snapshot() []*Occupant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Occupant, len(s.seats))
	for i, seat := range s.seats {
		if seat != nil {
			copied := *seat
			out[i] = &copied
		}
	}
	return out
}

// Pending returns the outstanding requests in no particular order.
func (s *SeatTable) Pending() []SeatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SeatRequest, 0, len(s.pending))
	for _, req := range s.pending {
		out = append(out, req)
	}
	return out
}
