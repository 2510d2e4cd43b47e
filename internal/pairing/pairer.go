package pairing

import (
	"time"

	"shiftsync/internal/shift"
)

// DefaultTolerance is the PA start-time matching window.
const DefaultTolerance = 60 * time.Minute

// MatchPolicy decides which candidate wins when several qualify.
type MatchPolicy int

const (
	// LastMatch keeps the last qualifying candidate in scan order.
	LastMatch MatchPolicy = iota
	// FirstMatch keeps the first qualifying candidate.
	FirstMatch
)

func (p MatchPolicy) String() string {
	if p == FirstMatch {
		return "first"
	}
	return "last"
}

// Paired is one scribe shift with its optional companion.
type Paired struct {
	Label     string
	Time      string
	Text      string
	Scribe    shift.Record
	Companion *shift.Record
}

// Start returns the scribe shift's start minute, or -1 when unreadable.
func (p Paired) Start() int {
	if m, ok := shift.StartMinutes(p.Scribe.Time); ok {
		return m
	}
	return -1
}

// Pairer matches scribes to providers.
type Pairer struct {
	Tolerance time.Duration
	Policy    MatchPolicy
}

// New returns a Pairer with the given PA tolerance and the LastMatch policy.
func New(tolerance time.Duration) Pairer {
	return Pairer{Tolerance: tolerance, Policy: LastMatch}
}

// Default returns a Pairer with DefaultTolerance.
func Default() Pairer {
	return New(DefaultTolerance)
}

// Pair returns one entry per scribe record in input order. Candidates are
// searched among records sharing the scribe's date.
func (p Pairer) Pair(records []shift.Record) []Paired {
	var out []Paired
	for _, rec := range records {
		if rec.Role != shift.RoleScribe {
			continue
		}
		companion := p.companion(rec, records)
		entry := Paired{
			Label:     rec.Label,
			Time:      shift.DisplayTime(rec.Time),
			Text:      rec.Person,
			Scribe:    rec,
			Companion: companion,
		}
		if companion != nil {
			entry.Text = rec.Person + " with " + companion.Person
		}
		out = append(out, entry)
	}
	return out
}

func (p Pairer) companion(scribe shift.Record, records []shift.Record) *shift.Record {
	var match *shift.Record
	for i := range records {
		candidate := records[i]
		if candidate.Date != scribe.Date || !p.matches(scribe, candidate) {
			continue
		}
		found := candidate
		match = &found
		if p.Policy == FirstMatch {
			break
		}
	}
	return match
}

func (p Pairer) matches(scribe, candidate shift.Record) bool {
	if scribe.Label == shift.PALabel {
		if candidate.Role != shift.RoleMLP {
			return false
		}
		return p.startsWithinTolerance(scribe.Time, candidate.Time)
	}
	return candidate.Role == shift.RolePhysician &&
		candidate.Time == scribe.Time &&
		candidate.Label == scribe.Label
}

func (p Pairer) startsWithinTolerance(a, b string) bool {
	sa, ok := shift.StartMinutes(a)
	if !ok {
		return false
	}
	sb, ok := shift.StartMinutes(b)
	if !ok {
		return false
	}
	delta := sa - sb
	if delta < 0 {
		delta = -delta
	}
	return time.Duration(delta)*time.Minute <= p.Tolerance
}
