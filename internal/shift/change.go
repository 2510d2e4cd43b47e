package shift

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ChangeType enumerates the kinds of Scribe-level roster changes.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change describes one difference between the stored snapshot and a fresh
// one. Old is nil for additions and New is nil for removals.
type Change struct {
	Type ChangeType
	Old  *Record
	New  *Record
}

// Current returns the record that identifies the change's slot: the new
// record when present, otherwise the old one.
func (c Change) Current() Record {
	if c.New != nil {
		return *c.New
	}
	if c.Old != nil {
		return *c.Old
	}
	return Record{}
}

// OldPerson returns the person before the change, or "".
func (c Change) OldPerson() string {
	if c.Old == nil {
		return ""
	}
	return c.Old.Person
}

// NewPerson returns the person after the change, or "".
func (c Change) NewPerson() string {
	if c.New == nil {
		return ""
	}
	return c.New.Person
}

// Hash returns the content hash that marks this change as delivered. It
// covers type, date, label, time, old person, and new person.
func (c Change) Hash() string {
	cur := c.Current()
	content := strings.Join([]string{
		string(c.Type),
		cur.Date,
		cur.Label,
		cur.Time,
		c.OldPerson(),
		c.NewPerson(),
	}, "|")
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Alerted builds the persisted record for a delivered change.
func (c Change) Alerted(at time.Time) AlertedChange {
	cur := c.Current()
	return AlertedChange{
		Hash:      c.Hash(),
		Type:      c.Type,
		Date:      cur.Date,
		Label:     cur.Label,
		Time:      cur.Time,
		OldPerson: c.OldPerson(),
		NewPerson: c.NewPerson(),
		Site:      cur.Site,
		AlertedAt: at,
	}
}

// AlertedChange is the persisted marker for a delivered change.
type AlertedChange struct {
	Hash      string
	Type      ChangeType
	Date      string
	Label     string
	Time      string
	OldPerson string
	NewPerson string
	Site      string
	AlertedAt time.Time
}
