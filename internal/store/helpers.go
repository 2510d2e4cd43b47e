package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"shiftsync/internal/services"
	"shiftsync/internal/shift"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	metaLastRefresh = "last_refresh"
	metaNameLegend  = "name_legend"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func storageError(operation string, err error) error {
	return services.Wrap(services.ErrStorage, "store", operation, "", err)
}

// uniqueByKey drops records whose identity key was already seen.
func uniqueByKey(records []shift.Record) []shift.Record {
	seen := make(map[shift.Key]struct{}, len(records))
	out := make([]shift.Record, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// row is the backend-neutral stored form of a record.
type row struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Label     string `json:"label"`
	Time      string `json:"time"`
	Person    string `json:"person"`
	Role      string `json:"role"`
	Site      string `json:"site"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (r row) record() shift.Record {
	return shift.Record{
		Date:      r.Date,
		Label:     r.Label,
		Time:      r.Time,
		Person:    r.Person,
		Role:      shift.Role(r.Role),
		Site:      r.Site,
		UpdatedAt: parseTimeString(r.UpdatedAt),
	}
}

// duplicateIDs returns the ids of rows that lose duplicate repair: every row
// after the first in its slot when ordered by updated_at DESC, id DESC.
func duplicateIDs(rows []row) []int64 {
	ordered := append([]row(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].UpdatedAt != ordered[j].UpdatedAt {
			return ordered[i].UpdatedAt > ordered[j].UpdatedAt
		}
		return ordered[i].ID > ordered[j].ID
	})
	seen := make(map[shift.SlotKey]struct{}, len(ordered))
	var losers []int64
	for _, r := range ordered {
		key := r.record().SlotKey()
		if _, ok := seen[key]; ok {
			losers = append(losers, r.ID)
			continue
		}
		seen[key] = struct{}{}
	}
	return losers
}
