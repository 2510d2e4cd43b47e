package refresh

import (
	"sort"
	"time"

	"shiftsync/internal/names"
	"shiftsync/internal/shift"
)

// Status summarises one cycle.
type Status struct {
	CycleID           string
	Trigger           string
	StartedAt         time.Time
	FinishedAt        time.Time
	Attempts          int
	Records           int
	Accepted          int
	Rejected          int
	Duplicates        int
	DuplicatesRemoved int
	Changes           int
	Delivered         int
	NewNames          names.Pending
	Err               string
	Shared            bool
}

// OK reports whether the cycle committed a snapshot.
func (s Status) OK() bool {
	return s.Err == ""
}

// Duration is the cycle's wall time.
func (s Status) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// SortChanges orders changes by date, keeping the diff order within a date.
func SortChanges(changes []shift.Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Current().Date < changes[j].Current().Date
	})
}
