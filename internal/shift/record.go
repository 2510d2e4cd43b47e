package shift

import "time"

const (
	// EmptyPerson marks an open slot with nobody assigned.
	EmptyPerson = "EMPTY"
	// PALabel is the label shared by physician-assistant coverage shifts.
	PALabel = "PA"
	// DateLayout is the calendar date format used throughout the roster.
	DateLayout = "2006-01-02"
)

// Record is one normalized shift.
type Record struct {
	Date   string
	Label  string
	Time   string
	Person string
	Role   Role
	Site   string

	// UpdatedAt is assigned by storage when the record is committed.
	UpdatedAt time.Time
}

// Key is the identity of a record within a snapshot.
type Key struct {
	Date   string
	Label  string
	Time   string
	Person string
	Role   Role
}

// SlotKey is the near-identity of a record: one live row is expected per slot.
type SlotKey struct {
	Date  string
	Label string
	Time  string
	Role  Role
}

// Key returns the record's identity key.
func (r Record) Key() Key {
	return Key{Date: r.Date, Label: r.Label, Time: r.Time, Person: r.Person, Role: r.Role}
}

// SlotKey returns the record's near-identity key.
func (r Record) SlotKey() SlotKey {
	return SlotKey{Date: r.Date, Label: r.Label, Time: r.Time, Role: r.Role}
}

// IsEmpty reports whether the slot is open.
func (r Record) IsEmpty() bool {
	return r.Person == EmptyPerson
}

// Range parses the record's time field.
func (r Record) Range() (Range, error) {
	return ParseRange(r.Time)
}

// FilterDate returns the records that fall on date, preserving order.
func FilterDate(records []Record, date string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Date == date {
			out = append(out, rec)
		}
	}
	return out
}

// FilterRole returns the records with the given role, preserving order.
func FilterRole(records []Record, role Role) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Role == role {
			out = append(out, rec)
		}
	}
	return out
}
