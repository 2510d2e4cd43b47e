package reconcile

import (
	"fmt"
	"strings"
	"time"

	"shiftsync/internal/services"
	"shiftsync/internal/shift"
)

// Rejection is a record refused by validation.
type Rejection struct {
	Record shift.Record
	Reason string
}

// ValidateRecord checks the structure of one record. The returned error
// wraps services.ErrValidation.
func ValidateRecord(rec shift.Record) error {
	if reason := invalidReason(rec); reason != "" {
		return fmt.Errorf("%w: %s", services.ErrValidation, reason)
	}
	return nil
}

func invalidReason(rec shift.Record) string {
	if _, err := time.Parse(shift.DateLayout, rec.Date); err != nil {
		return fmt.Sprintf("date %q is not a calendar date", rec.Date)
	}
	if _, err := shift.ParseRange(rec.Time); err != nil {
		return err.Error()
	}
	for _, field := range []struct{ name, value string }{
		{"person", rec.Person},
		{"label", rec.Label},
		{"site", rec.Site},
	} {
		if strings.TrimSpace(field.value) == "" {
			return field.name + " is empty"
		}
	}
	if !rec.Role.Valid() {
		return fmt.Sprintf("role %q is not Scribe, Physician, or MLP", rec.Role)
	}
	return ""
}

// Validate splits records into valid ones, in input order, and rejections.
func Validate(records []shift.Record) ([]shift.Record, []Rejection) {
	valid := make([]shift.Record, 0, len(records))
	var rejected []Rejection
	for _, rec := range records {
		if reason := invalidReason(rec); reason != "" {
			rejected = append(rejected, Rejection{Record: rec, Reason: reason})
			continue
		}
		valid = append(valid, rec)
	}
	return valid, rejected
}
