package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"shiftsync/internal/pairing"
	"shiftsync/internal/shift"
)

// Grouping selects how a view is bucketed.
type Grouping string

const (
	ByZone   Grouping = "zone"
	ByPeriod Grouping = "period"
)

// ParseGrouping maps a user-supplied value onto a Grouping.
func ParseGrouping(value string) (Grouping, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "zone", "zones":
		return ByZone, nil
	case "period", "periods", "time":
		return ByPeriod, nil
	default:
		return "", fmt.Errorf("unknown grouping %q (want zone or period)", value)
	}
}

// View is one rendered day.
type View struct {
	Date        string
	Groups      []pairing.Group
	Shifts      int
	GeneratedAt time.Time
}

// DayReader loads the records for one date.
type DayReader interface {
	ShiftsForDate(ctx context.Context, date string) ([]shift.Record, error)
}

// BuildView pairs the day's records and groups them.
func BuildView(ctx context.Context, st DayReader, pairer pairing.Pairer, date string, by Grouping, now time.Time) (View, error) {
	records, err := st.ShiftsForDate(ctx, date)
	if err != nil {
		return View{}, fmt.Errorf("load shifts for %s: %w", date, err)
	}
	paired := pairer.Pair(records)
	view := View{Date: date, Shifts: len(paired), GeneratedAt: now}
	if by == ByPeriod {
		view.Groups = pairing.GroupByPeriod(paired)
	} else {
		view.Groups = pairing.GroupByZone(paired)
	}
	return view, nil
}

// WriteText renders the view as plain text, one merged line per entry.
func WriteText(w io.Writer, view View) error {
	title := view.Date
	if t, err := time.Parse(shift.DateLayout, view.Date); err == nil {
		title = t.Format("Monday, January 2, 2006")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule for %s\n", title)
	if len(view.Groups) == 0 {
		b.WriteString("\nNo shifts scheduled for this date\n")
	}
	for _, group := range view.Groups {
		fmt.Fprintf(&b, "\n%s\n", group.Name)
		for _, line := range pairing.MergeLines(group.Entries) {
			fmt.Fprintf(&b, "  %s\n", line.String())
		}
	}
	if !view.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "\nShifts: %d | Last updated: %s\n", view.Shifts, view.GeneratedAt.Format("1/2 at 3:04 PM"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
