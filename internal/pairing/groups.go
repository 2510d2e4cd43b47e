package pairing

import (
	"sort"
	"strings"
	"time"

	"shiftsync/internal/shift"
)

// Period names for GroupByPeriod.
const (
	PeriodMorning   = "Morning"
	PeriodAfternoon = "Afternoon/Evening"
	PeriodNight     = "Night"
)

// ZoneOther collects labels missing from the zone table.
const ZoneOther = "Other"

// Zone is a named set of labels worked together.
type Zone struct {
	Name   string
	Labels []string
}

var zones = []Zone{
	{Name: "Zone 1", Labels: []string{"B", "F", "X"}},
	{Name: "Zone 2", Labels: []string{"A", "E", "I"}},
	{Name: "Zones 3/4", Labels: []string{"C", "G"}},
	{Name: "Fast Track", Labels: []string{"D", "H"}},
	{Name: "PA Fast Track", Labels: []string{"PA"}},
	{Name: "Overflow", Labels: []string{"PIT"}},
}

// Zones returns a copy of the zone table in display order.
func Zones() []Zone {
	out := make([]Zone, len(zones))
	for i, z := range zones {
		out[i] = Zone{Name: z.Name, Labels: append([]string(nil), z.Labels...)}
	}
	return out
}

// ZoneFor returns the zone name for a label, or ZoneOther.
func ZoneFor(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	for _, z := range zones {
		for _, l := range z.Labels {
			if l == label {
				return z.Name
			}
		}
	}
	return ZoneOther
}

// PeriodFor buckets a start hour: Morning [5,11), Afternoon/Evening [11,18),
// Night otherwise.
func PeriodFor(hour int) string {
	switch {
	case hour >= 5 && hour < 11:
		return PeriodMorning
	case hour >= 11 && hour < 18:
		return PeriodAfternoon
	default:
		return PeriodNight
	}
}

// Group is an ordered bucket of pairs.
type Group struct {
	Name    string
	Entries []Paired
}

// GroupByPeriod buckets pairs by the scribe's start hour. Empty periods are
// omitted; entries are ordered by start time, then label.
func GroupByPeriod(paired []Paired) []Group {
	order := []string{PeriodMorning, PeriodAfternoon, PeriodNight}
	buckets := make(map[string][]Paired, len(order))
	for _, p := range paired {
		hour := -1
		if start := p.Start(); start >= 0 {
			hour = start / 60
		}
		name := PeriodFor(hour)
		buckets[name] = append(buckets[name], p)
	}
	return collect(order, buckets)
}

// GroupByZone buckets pairs by the zone table, with unlisted labels in
// ZoneOther at the end. Entries are ordered by start time, then label.
func GroupByZone(paired []Paired) []Group {
	order := make([]string, 0, len(zones)+1)
	for _, z := range zones {
		order = append(order, z.Name)
	}
	order = append(order, ZoneOther)
	buckets := make(map[string][]Paired, len(order))
	for _, p := range paired {
		name := ZoneFor(p.Label)
		buckets[name] = append(buckets[name], p)
	}
	return collect(order, buckets)
}

func collect(order []string, buckets map[string][]Paired) []Group {
	var groups []Group
	for _, name := range order {
		entries := buckets[name]
		if len(entries) == 0 {
			continue
		}
		sortEntries(entries)
		groups = append(groups, Group{Name: name, Entries: entries})
	}
	return groups
}

func sortEntries(entries []Paired) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Start() != b.Start() {
			return a.Start() < b.Start()
		}
		if a.Scribe.Time != b.Scribe.Time {
			return a.Scribe.Time < b.Scribe.Time
		}
		return a.Label < b.Label
	})
}

// Line is a display row: one label and text covering one or more times.
type Line struct {
	Label string
	Times []string
	Text  string
}

func (l Line) String() string {
	return l.Label + "  " + strings.Join(l.Times, ", ") + " • " + l.Text
}

// MergeLines folds consecutive entries with the same label and text into a
// single line.
func MergeLines(entries []Paired) []Line {
	var lines []Line
	for _, p := range entries {
		if n := len(lines); n > 0 && lines[n-1].Label == p.Label && lines[n-1].Text == p.Text {
			lines[n-1].Times = append(lines[n-1].Times, p.Time)
			continue
		}
		lines = append(lines, Line{Label: p.Label, Times: []string{p.Time}, Text: p.Text})
	}
	return lines
}

// OnDuty returns the records whose range covers minute-of-day minute.
// Overnight ranges wrap past midnight; unreadable ranges never match.
func OnDuty(records []shift.Record, minute int) []shift.Record {
	var out []shift.Record
	for _, rec := range records {
		r, err := shift.ParseRange(rec.Time)
		if err != nil || !r.Contains(minute) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ActivePairs filters pairs to scribes on duty at minute-of-day minute,
// ordered by label.
func ActivePairs(paired []Paired, minute int) []Paired {
	var out []Paired
	for _, p := range paired {
		r, err := shift.ParseRange(p.Scribe.Time)
		if err != nil || !r.Contains(minute) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// MinuteOfDay returns t's minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// RelevantDate returns the schedule date to show at now: today in loc, or
// tomorrow once the local hour reaches cutoffHour.
func RelevantDate(now time.Time, loc *time.Location, cutoffHour int) string {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	if local.Hour() >= cutoffHour {
		local = local.AddDate(0, 0, 1)
	}
	return local.Format(shift.DateLayout)
}
