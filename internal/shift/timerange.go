package shift

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rangePattern = regexp.MustCompile(`^(\d{3,4})-(\d{3,4})$`)

// ErrInvalidRange is returned when a time field is not a well-formed range.
var ErrInvalidRange = errors.New("invalid time range")

const minutesPerDay = 24 * 60

// Range is a parsed shift time in minutes since midnight. End may be less
// than Start for shifts that run past midnight.
type Range struct {
	Start int
	End   int
}

// ParseRange parses "HHMM-HHMM" or "HMM-HHMM" style ranges. Each side must
// resolve to hour 0-23 and minute 0-59.
func ParseRange(value string) (Range, error) {
	m := rangePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Range{}, fmt.Errorf("%w: %q does not match HHMM-HHMM", ErrInvalidRange, value)
	}
	start, err := parseClock(m[1])
	if err != nil {
		return Range{}, err
	}
	end, err := parseClock(m[2])
	if err != nil {
		return Range{}, err
	}
	return Range{Start: start, End: end}, nil
}

// StartMinutes returns the start of a range string, ignoring the end. It
// reports false when the start cannot be read.
func StartMinutes(value string) (int, bool) {
	head, _, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return 0, false
	}
	minutes, err := parseClock(head)
	if err != nil {
		return 0, false
	}
	return minutes, true
}

func parseClock(value string) (int, error) {
	if len(value) != 3 && len(value) != 4 {
		return 0, fmt.Errorf("%w: %q must have 3 or 4 digits", ErrInvalidRange, value)
	}
	split := len(value) - 2
	hour, err := strconv.Atoi(value[:split])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidRange, value, err)
	}
	minute, err := strconv.Atoi(value[split:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidRange, value, err)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: hour %d out of range in %q", ErrInvalidRange, hour, value)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: minute %d out of range in %q", ErrInvalidRange, minute, value)
	}
	return hour*60 + minute, nil
}

// StartHour returns the hour the range begins in.
func (r Range) StartHour() int {
	return r.Start / 60
}

// Overnight reports whether the range wraps past midnight.
func (r Range) Overnight() bool {
	return r.End < r.Start
}

// Duration returns the length of the range in minutes.
func (r Range) Duration() int {
	if r.Overnight() {
		return r.End + minutesPerDay - r.Start
	}
	return r.End - r.Start
}

// Contains reports whether minute-of-day m falls inside the range. The end
// is exclusive.
func (r Range) Contains(m int) bool {
	if r.Overnight() {
		return m >= r.Start || m < r.End
	}
	return m >= r.Start && m < r.End
}

// Display renders the range as "HH:MM-HH:MM".
func (r Range) Display() string {
	return clock(r.Start) + "-" + clock(r.End)
}

func clock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// DisplayTime renders a raw time field as "HH:MM-HH:MM", returning the input
// unchanged when it cannot be parsed.
func DisplayTime(value string) string {
	r, err := ParseRange(value)
	if err != nil {
		return value
	}
	return r.Display()
}
