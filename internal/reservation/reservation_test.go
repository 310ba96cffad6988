package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/five82/bookshare/internal/lending"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveStatus(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 1, 8)

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"before start", start.Add(-time.Nanosecond), StatusUpcoming},
		{"exactly start", start, StatusActive},
		{"inside window", date(2024, 1, 4), StatusActive},
		{"exactly end", end, StatusActive},
		{"after end", end.Add(time.Nanosecond), StatusOverdue},
		{"long after", date(2024, 1, 10), StatusOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(start, end, tt.now); got != tt.want {
				t.Fatalf("DeriveStatus(%v) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestDeriveStatus_ExactlyOneState(t *testing.T) {
	start := date(2024, 3, 1)
	end := date(2024, 3, 5)
	valid := map[Status]bool{StatusUpcoming: true, StatusActive: true, StatusOverdue: true}
	var prev Status
	for h := -48; h <= 24*7; h += 6 {
		now := start.Add(time.Duration(h) * time.Hour)
		got := DeriveStatus(start, end, now)
		if !valid[got] {
			t.Fatalf("DeriveStatus(%v) = %q, not a known state", now, got)
		}
		// Monotonic: Upcoming → Active → Overdue.
		if prev == StatusActive && got == StatusUpcoming || prev == StatusOverdue && got != StatusOverdue {
			t.Fatalf("status went backwards from %s to %s at %v", prev, got, now)
		}
		prev = got
	}
}

func TestDurationDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"one week", date(2024, 1, 1), date(2024, 1, 8), 7},
		{"same instant", date(2024, 1, 1), date(2024, 1, 1), 1},
		{"same day", date(2024, 1, 1), date(2024, 1, 1).Add(3 * time.Hour), 1},
		{"partial day rounds up", date(2024, 1, 1), date(2024, 1, 3).Add(time.Minute), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DurationDays(tt.start, tt.end)
			if err != nil {
				t.Fatalf("DurationDays returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DurationDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDurationDays_AtLeastOne(t *testing.T) {
	start := date(2024, 2, 1)
	for mins := 0; mins <= 60*24*3; mins += 37 {
		got, err := DurationDays(start, start.Add(time.Duration(mins)*time.Minute))
		if err != nil {
			t.Fatalf("DurationDays returned error: %v", err)
		}
		if got < 1 {
			t.Fatalf("DurationDays(+%dm) = %d, want >= 1", mins, got)
		}
	}
}

func TestDurationDays_InvalidRange(t *testing.T) {
	_, err := DurationDays(date(2024, 1, 8), date(2024, 1, 1))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}
}

func TestOverdueScenario(t *testing.T) {
	r := lending.Reservation{ID: "r1", StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 8)}
	rows := BuildRows([]lending.Reservation{r}, date(2024, 1, 10))
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Status != StatusOverdue || rows[0].DurationDays != 7 || rows[0].RemainingDays != 0 {
		t.Fatalf("row = %+v, want Overdue, 7 days, 0 remaining", rows[0])
	}
	if rows[0].Owner != "Owner info not available" {
		t.Fatalf("Owner = %q", rows[0].Owner)
	}
}

func TestBuildRows_CopyDetailsAndInvalidRange(t *testing.T) {
	reservations := []lending.Reservation{
		{
			ID:        "r1",
			Copy:      &lending.Copy{Title: "Dune", Authors: []string{"Frank Herbert", "Someone"}, MaxDuration: 14, Owner: &lending.Owner{ID: "u2", Email: "bo@example.com"}},
			StartDate: date(2024, 1, 5),
			EndDate:   date(2024, 1, 9),
		},
		{ID: "r2", StartDate: date(2024, 1, 9), EndDate: date(2024, 1, 5)},
	}
	rows := BuildRows(reservations, date(2024, 1, 6).Add(12*time.Hour))

	if rows[0].Title != "Dune" || rows[0].Authors != "Frank Herbert, Someone" || rows[0].Owner != "bo@example.com" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[0].Status != StatusActive || rows[0].RemainingDays != 3 || rows[0].MaxDuration != 14 {
		t.Fatalf("row 0 derived = %+v", rows[0])
	}
	if !rows[1].Invalid || rows[1].DurationDays != 0 {
		t.Fatalf("row 1 = %+v, want invalid range", rows[1])
	}

	counts := CountByStatus(rows)
	if counts[StatusActive] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestRemainingDays(t *testing.T) {
	end := date(2024, 1, 8)
	if got := RemainingDays(end, date(2024, 1, 10)); got != 0 {
		t.Fatalf("past end = %d, want 0", got)
	}
	if got := RemainingDays(end, end.Add(-time.Hour)); got != 1 {
		t.Fatalf("one hour left = %d, want 1", got)
	}
	if got := RemainingDays(end, date(2024, 1, 1)); got != 7 {
		t.Fatalf("full week = %d, want 7", got)
	}
}

func TestEndDateFor(t *testing.T) {
	start := time.Date(2024, 1, 30, 9, 30, 0, 0, time.UTC)
	got := EndDateFor(start, 3)
	want := time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("EndDateFor = %v, want %v", got, want)
	}
	if days, _ := DurationDays(start, got); days != 3 {
		t.Fatalf("DurationDays(EndDateFor(3)) = %d, want 3", days)
	}
}

func TestValidateRequestedDays(t *testing.T) {
	tests := []struct {
		days, max int
		ok        bool
	}{
		{1, 14, true},
		{14, 14, true},
		{15, 14, false},
		{0, 14, false},
		{-2, 14, false},
		{30, 0, true},
		{31, 0, false},
	}
	for _, tt := range tests {
		err := ValidateRequestedDays(tt.days, tt.max)
		if (err == nil) != tt.ok {
			t.Fatalf("ValidateRequestedDays(%d, %d) = %v, want ok=%v", tt.days, tt.max, err, tt.ok)
		}
	}
}

func TestPartitionCopies(t *testing.T) {
	copies := []lending.Copy{
		{ID: "c1", Owner: &lending.Owner{ID: "me"}},
		{ID: "c2", Owner: &lending.Owner{ID: "other"}},
		{ID: "c3"},
		{ID: "c4", Owner: &lending.Owner{Name: "No id"}},
		{ID: "c5", Owner: &lending.Owner{ID: "me"}},
	}

	groups := PartitionCopies(copies, "me")
	if len(groups.Owned)+len(groups.Borrowable) != len(copies) {
		t.Fatalf("partition sizes %d+%d != %d", len(groups.Owned), len(groups.Borrowable), len(copies))
	}
	seen := map[string]int{}
	for _, c := range groups.Owned {
		seen[c.ID]++
		if c.OwnerID() != "me" {
			t.Fatalf("owned copy %s has owner %q", c.ID, c.OwnerID())
		}
	}
	for _, c := range groups.Borrowable {
		seen[c.ID]++
	}
	for _, c := range copies {
		if seen[c.ID] != 1 {
			t.Fatalf("copy %s appears %d times, want exactly once", c.ID, seen[c.ID])
		}
	}
	if len(groups.Owned) != 2 {
		t.Fatalf("owned = %d, want 2", len(groups.Owned))
	}
}

func TestPartitionCopies_AnonymousOwnsNothing(t *testing.T) {
	copies := []lending.Copy{{ID: "c1"}, {ID: "c2", Owner: &lending.Owner{ID: ""}}}
	groups := PartitionCopies(copies, "")
	if len(groups.Owned) != 0 || len(groups.Borrowable) != 2 {
		t.Fatalf("groups = %+v, want all borrowable", groups)
	}
}

func TestApplyOptimisticRemoval(t *testing.T) {
	list := []lending.Copy{{ID: "40"}, {ID: "41"}, {ID: "42"}, {ID: "43"}}

	out, removal := ApplyOptimisticRemoval(list, "42", CopyID)
	if len(out) != len(list)-1 {
		t.Fatalf("len = %d, want %d", len(out), len(list)-1)
	}
	for _, c := range out {
		if c.ID == "42" {
			t.Fatal("id 42 still present")
		}
	}
	if !removal.Found || removal.Index != 2 || removal.Item.ID != "42" {
		t.Fatalf("removal = %+v", removal)
	}
	if list[2].ID != "42" {
		t.Fatal("input slice was modified")
	}

	restored := removal.Rollback(out)
	if len(restored) != len(list) || restored[2].ID != "42" {
		t.Fatalf("Rollback = %+v, want original order", restored)
	}
}

func TestApplyOptimisticRemoval_MissingID(t *testing.T) {
	list := []lending.Reservation{{ID: "r1"}}
	out, removal := ApplyOptimisticRemoval(list, "nope", ReservationID)
	if len(out) != 1 || removal.Found {
		t.Fatalf("out=%v removal=%+v, want unchanged", out, removal)
	}
	if got := removal.Rollback(out); len(got) != 1 {
		t.Fatalf("Rollback of missing removal changed list: %v", got)
	}
}

func TestRollback_ClampsIndex(t *testing.T) {
	list := []lending.Copy{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	_, removal := ApplyOptimisticRemoval(list, "c", CopyID)
	restored := removal.Rollback([]lending.Copy{{ID: "a"}})
	if len(restored) != 2 || restored[1].ID != "c" {
		t.Fatalf("Rollback = %+v, want c appended", restored)
	}
}

func TestRollback_SkipsItemAlreadyPresent(t *testing.T) {
	list := []lending.Copy{{ID: "41"}, {ID: "42"}}
	_, removal := ApplyOptimisticRemoval(list, "42", CopyID)

	// A refresh put the copy back before the delete failed.
	restored := removal.Rollback([]lending.Copy{{ID: "41"}, {ID: "42"}})
	if len(restored) != 2 {
		t.Fatalf("Rollback = %+v, want no duplicate", restored)
	}
}

func TestOwnerLabel(t *testing.T) {
	if got := OwnerLabel(&lending.Owner{Name: "Ada", Email: "ada@example.com"}); got != "Ada" {
		t.Fatalf("OwnerLabel = %q, want Ada", got)
	}
	if got := OwnerLabel(&lending.Owner{Email: "ada@example.com"}); got != "ada@example.com" {
		t.Fatalf("OwnerLabel = %q, want email", got)
	}
	if got := OwnerLabel(nil); got != "Owner info not available" {
		t.Fatalf("OwnerLabel(nil) = %q", got)
	}
}
