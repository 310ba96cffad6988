// Package reservation turns raw reservation and copy records into display
// state. Everything here is pure: no network, no clocks except the now
// argument.
package reservation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/five82/bookshare/internal/lending"
)

// Status is the derived lifecycle state of a reservation.
type Status string

const (
	StatusUpcoming Status = "Upcoming"
	StatusActive   Status = "Active"
	StatusOverdue  Status = "Overdue"
)

const day = 24 * time.Hour

// fallbackMaxDays caps requested days when a copy carries no max duration.
const fallbackMaxDays = 30

// ErrInvalidRange reports an end date before the start date.
var ErrInvalidRange = errors.New("end date before start date")

// DeriveStatus places now relative to the reservation window. Both
// boundaries count as Active.
func DeriveStatus(start, end, now time.Time) Status {
	switch {
	case now.After(end):
		return StatusOverdue
	case now.Before(start):
		return StatusUpcoming
	default:
		return StatusActive
	}
}

// DurationDays returns the loan length in whole days, rounded up, never less
// than one.
func DurationDays(start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s < %s", ErrInvalidRange,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return max(ceilDays(end.Sub(start)), 1), nil
}

// RemainingDays returns the whole days left until end, rounded up. It is
// zero once end has passed.
func RemainingDays(end, now time.Time) int {
	if !end.After(now) {
		return 0
	}
	return ceilDays(end.Sub(now))
}

// EndDateFor returns the end date of a loan of days starting at start.
func EndDateFor(start time.Time, days int) time.Time {
	return start.AddDate(0, 0, days)
}

// ValidateRequestedDays checks days against the copy's maximum loan length.
func ValidateRequestedDays(days, maxDuration int) error {
	maxDuration = MaxDays(maxDuration)
	if days < 1 {
		return fmt.Errorf("loan must be at least 1 day")
	}
	if days > maxDuration {
		return fmt.Errorf("loan cannot exceed %d days (set by owner)", maxDuration)
	}
	return nil
}

// MaxDays returns the longest loan a copy allows. Copies without a limit
// fall back to 30 days.
func MaxDays(maxDuration int) int {
	if maxDuration <= 0 {
		return fallbackMaxDays
	}
	return maxDuration
}

// OwnerLabel names the owner of a copy for display.
func OwnerLabel(owner *lending.Owner) string {
	if owner != nil {
		if name := strings.TrimSpace(owner.Name); name != "" {
			return name
		}
		if email := strings.TrimSpace(owner.Email); email != "" {
			return email
		}
	}
	return "Owner info not available"
}

func ceilDays(d time.Duration) int {
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
