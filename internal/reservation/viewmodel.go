package reservation

import (
	"slices"
	"strings"
	"time"

	"github.com/five82/bookshare/internal/lending"
)

// CopyGroups partitions a book's copies by ownership.
type CopyGroups struct {
	Owned      []lending.Copy
	Borrowable []lending.Copy
}

// PartitionCopies splits copies into those owned by currentUserID and the
// rest. Copies without a resolvable owner are borrowable. An empty
// currentUserID owns nothing.
func PartitionCopies(copies []lending.Copy, currentUserID string) CopyGroups {
	var groups CopyGroups
	currentUserID = strings.TrimSpace(currentUserID)
	for _, c := range copies {
		if owner := c.OwnerID(); currentUserID != "" && owner == currentUserID {
			groups.Owned = append(groups.Owned, c)
			continue
		}
		groups.Borrowable = append(groups.Borrowable, c)
	}
	return groups
}

// Removal records an optimistically removed item so it can be put back.
type Removal[T any] struct {
	ID    string
	Item  T
	Index int
	Found bool

	idOf func(T) string
}

// ApplyOptimisticRemoval returns a new list without the item whose id
// matches. The input slice is not modified.
func ApplyOptimisticRemoval[T any](list []T, id string, idOf func(T) string) ([]T, Removal[T]) {
	idx := slices.IndexFunc(list, func(item T) bool { return idOf(item) == id })
	if idx < 0 {
		return slices.Clone(list), Removal[T]{ID: id, Index: -1}
	}
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out, Removal[T]{ID: id, Item: list[idx], Index: idx, Found: true, idOf: idOf}
}

// Rollback re-inserts the removed item at its previous position, clamped to
// the current list length. A list that already holds the id is returned
// unchanged.
func (r Removal[T]) Rollback(list []T) []T {
	if !r.Found {
		return list
	}
	if r.idOf != nil && slices.ContainsFunc(list, func(item T) bool { return r.idOf(item) == r.ID }) {
		return list
	}
	idx := min(max(r.Index, 0), len(list))
	return slices.Insert(slices.Clone(list), idx, r.Item)
}

// CopyID and ReservationID adapt the record types to ApplyOptimisticRemoval.
func CopyID(c lending.Copy) string               { return c.ID }
func ReservationID(r lending.Reservation) string { return r.ID }

// Row is a reservation ready for rendering.
type Row struct {
	ID            string
	Title         string
	Authors       string
	Owner         string
	Status        Status
	Start         time.Time
	End           time.Time
	DurationDays  int
	RemainingDays int
	MaxDuration   int
	Invalid       bool // end before start; DurationDays is zero
}

// BuildRows derives display rows for reservations at now. Status is
// recomputed on every call and never cached.
func BuildRows(reservations []lending.Reservation, now time.Time) []Row {
	rows := make([]Row, 0, len(reservations))
	for _, r := range reservations {
		row := Row{
			ID:            r.ID,
			Title:         r.Title(),
			Status:        DeriveStatus(r.StartDate, r.EndDate, now),
			Start:         r.StartDate,
			End:           r.EndDate,
			RemainingDays: RemainingDays(r.EndDate, now),
		}
		if r.Copy != nil {
			row.Authors = strings.Join(r.Copy.Authors, ", ")
			row.Owner = OwnerLabel(r.Copy.Owner)
			row.MaxDuration = r.Copy.MaxDuration
		} else {
			row.Owner = OwnerLabel(nil)
		}
		if days, err := DurationDays(r.StartDate, r.EndDate); err == nil {
			row.DurationDays = days
		} else {
			row.Invalid = true
		}
		rows = append(rows, row)
	}
	return rows
}

// CountByStatus tallies rows per status.
func CountByStatus(rows []Row) map[Status]int {
	counts := map[Status]int{}
	for _, r := range rows {
		counts[r.Status]++
	}
	return counts
}
