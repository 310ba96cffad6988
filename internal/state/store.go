package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/bookshare/internal/lending"
	"github.com/five82/bookshare/internal/reservation"
)

// Snapshot represents the signed-in user's latest dashboard data.
type Snapshot struct {
	Copies              []lending.Copy
	Reservations        []lending.Reservation
	HasData             bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive refresh failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
//
// Ids removed optimistically stay hidden from refreshes until the removal is
// confirmed or rolled back. Every local mutation bumps the generation so a
// refresh fetched before it can be discarded with UpdateAt.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	gen      uint64

	removingCopies       map[string]bool
	removingReservations map[string]bool
}

// Generation identifies the current state of the store. Capture it before
// fetching and pass it to UpdateAt.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Update replaces the stored lists. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(copies []lending.Copy, reservations []lending.Reservation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(copies, reservations, err)
}

// UpdateAt applies a refresh fetched at generation gen. It reports false and
// changes nothing when the store has moved on since then.
func (s *Store) UpdateAt(gen uint64, copies []lending.Copy, reservations []lending.Reservation, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.applyLocked(copies, reservations, err)
	return true
}

func (s *Store) applyLocked(copies []lending.Copy, reservations []lending.Reservation, err error) {
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Copies = without(copies, s.removingCopies, reservation.CopyID)
	s.snapshot.Reservations = without(reservations, s.removingReservations, reservation.ReservationID)
	s.snapshot.HasData = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// RemoveCopy drops a copy ahead of the server confirming the delete. Finish
// with ConfirmCopy or RestoreCopy.
func (s *Store) RemoveCopy(id string) reservation.Removal[lending.Copy] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removal reservation.Removal[lending.Copy]
	s.snapshot.Copies, removal = reservation.ApplyOptimisticRemoval(s.snapshot.Copies, id, reservation.CopyID)
	if removal.Found {
		s.removingCopies = mark(s.removingCopies, id)
		s.gen++
	}
	return removal
}

// RemoveReservation drops a reservation ahead of the server confirming the
// cancellation. Finish with ConfirmReservation or RestoreReservation.
func (s *Store) RemoveReservation(id string) reservation.Removal[lending.Reservation] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removal reservation.Removal[lending.Reservation]
	s.snapshot.Reservations, removal = reservation.ApplyOptimisticRemoval(s.snapshot.Reservations, id, reservation.ReservationID)
	if removal.Found {
		s.removingReservations = mark(s.removingReservations, id)
		s.gen++
	}
	return removal
}

// ConfirmCopy records that the server deleted the copy.
func (s *Store) ConfirmCopy(r reservation.Removal[lending.Copy]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removingCopies, r.ID)
	s.gen++
}

// ConfirmReservation records that the server cancelled the reservation.
func (s *Store) ConfirmReservation(r reservation.Removal[lending.Reservation]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removingReservations, r.ID)
	s.gen++
}

// RestoreCopy undoes RemoveCopy.
func (s *Store) RestoreCopy(r reservation.Removal[lending.Copy]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removingCopies, r.ID)
	s.gen++
	s.snapshot.Copies = r.Rollback(s.snapshot.Copies)
}

// RestoreReservation undoes RemoveReservation.
func (s *Store) RestoreReservation(r reservation.Removal[lending.Reservation]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.removingReservations, r.ID)
	s.gen++
	s.snapshot.Reservations = r.Rollback(s.snapshot.Reservations)
}

// Reset drops all data, e.g. on logout. Refreshes already in flight are
// discarded by UpdateAt.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
	s.removingCopies = nil
	s.removingReservations = nil
	s.gen++
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Copies = clone(s.snapshot.Copies)
	snap.Reservations = clone(s.snapshot.Reservations)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func mark(set map[string]bool, id string) map[string]bool {
	if set == nil {
		set = map[string]bool{}
	}
	set[id] = true
	return set
}

// without clones items, leaving out ids in skip.
func without[T any](items []T, skip map[string]bool, idOf func(T) string) []T {
	if len(skip) == 0 {
		return clone(items)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !skip[idOf(item)] {
			out = append(out, item)
		}
	}
	return clone(out)
}

func clone[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}
