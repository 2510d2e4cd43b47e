package display_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shiftsync/internal/display"
	"shiftsync/internal/logging"
	"shiftsync/internal/pairing"
	"shiftsync/internal/shift"
	"shiftsync/internal/testsupport"
)

type dayStore map[string][]shift.Record

func (d dayStore) ShiftsForDate(_ context.Context, date string) ([]shift.Record, error) {
	return d[date], nil
}

type fakeTarget struct {
	id    string
	err   error
	views []display.View
}

func (f *fakeTarget) ID() string { return f.id }

func (f *fakeTarget) Render(_ context.Context, view display.View) error {
	if f.err != nil {
		return f.err
	}
	f.views = append(f.views, view)
	return nil
}

var day = dayStore{
	"2025-03-01": {
		testsupport.Scribe("2025-03-01", "A", "0700-1500", "Molly"),
		testsupport.Physician("2025-03-01", "A", "0700-1500", "Dr. Merjanian"),
	},
	"2025-03-02": {
		testsupport.Scribe("2025-03-02", "B", "1100-1930", "Nora"),
	},
}

func newRefresher(now time.Time) *display.Refresher {
	return display.NewRefresher(day, pairing.Default(), time.UTC, 20, logging.NewNop(),
		display.WithClock(func() time.Time { return now }))
}

func TestRefreshOnceUsesRelevantDate(t *testing.T) {
	target := &fakeTarget{id: "t"}
	r := newRefresher(time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC))
	r.Register(target)

	updated, removed, err := r.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("RefreshOnce returned error: %v", err)
	}
	if updated != 1 || len(removed) != 0 {
		t.Fatalf("unexpected result updated=%d removed=%v", updated, removed)
	}
	if got := target.views[0].Date; got != "2025-03-02" {
		t.Fatalf("expected tomorrow after cutoff, got %s", got)
	}
}

func TestRefreshOnceDeregistersGoneTargets(t *testing.T) {
	gone := &fakeTarget{id: "gone", err: display.ErrTargetGone}
	flaky := &fakeTarget{id: "flaky", err: errors.New("timeout")}
	ok := &fakeTarget{id: "ok"}
	r := newRefresher(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	r.Register(gone)
	r.Register(flaky)
	r.Register(ok)

	updated, removed, err := r.RefreshOnce(context.Background())
	if err != nil {
		t.Fatalf("RefreshOnce returned error: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected one update, got %d", updated)
	}
	if len(removed) != 1 || removed[0] != "gone" {
		t.Fatalf("expected gone target removed, got %v", removed)
	}
	ids := r.Targets()
	if len(ids) != 2 || ids[0] != "flaky" || ids[1] != "ok" {
		t.Fatalf("expected flaky target retained, got %v", ids)
	}
}

func TestWriteTextMergesLines(t *testing.T) {
	view, err := display.BuildView(context.Background(), day, pairing.Default(), "2025-03-01", display.ByZone, time.Time{})
	if err != nil {
		t.Fatalf("BuildView returned error: %v", err)
	}
	var buf bytes.Buffer
	if err := display.WriteText(&buf, view); err != nil {
		t.Fatalf("WriteText returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Schedule for Saturday, March 1, 2025", "Zone 2", "A  07:00-15:00 • Molly with Dr. Merjanian"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFileTargetReportsMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "views")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	target := display.FileTarget{Path: filepath.Join(dir, "today.txt")}
	view := display.View{Date: "2025-03-01"}
	if err := target.Render(context.Background(), view); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	data, err := os.ReadFile(target.Path)
	if err != nil || !strings.Contains(string(data), "No shifts scheduled") {
		t.Fatalf("unexpected view file %q, %v", data, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := target.Render(context.Background(), view); !errors.Is(err, display.ErrTargetGone) {
		t.Fatalf("expected ErrTargetGone, got %v", err)
	}
}

func TestParseGrouping(t *testing.T) {
	if g, err := display.ParseGrouping("Period"); err != nil || g != display.ByPeriod {
		t.Fatalf("unexpected grouping %q, %v", g, err)
	}
	if _, err := display.ParseGrouping("floor"); err == nil {
		t.Fatal("expected error for unknown grouping")
	}
}
