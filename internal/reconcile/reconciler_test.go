package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"shiftsync/internal/config"
	"shiftsync/internal/logging"
	"shiftsync/internal/reconcile"
	"shiftsync/internal/services"
	"shiftsync/internal/shift"
	"shiftsync/internal/store"
)

var ignoreUpdated = cmpopts.IgnoreFields(shift.Record{}, "UpdatedAt")

type upperNames struct{}

func (upperNames) Standardize(raw string, role shift.Role) string {
	if role == shift.RolePhysician {
		return "Dr. " + raw
	}
	return raw
}

func newReconciler(t *testing.T, now time.Time) (*reconcile.Reconciler, store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Storage.Driver = config.DriverSQLite
	s, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("store.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	clock := func() time.Time { return now }
	return reconcile.New(s, upperNames{}, logging.NewNop(), reconcile.WithClock(clock)), s
}

func scribe(date, label, timeRange, person string) shift.Record {
	return shift.Record{Date: date, Label: label, Time: timeRange, Person: person, Role: shift.RoleScribe, Site: "St Joseph Scribe"}
}

func TestValidateRecordBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*shift.Record)
		valid bool
	}{
		{"ok", func(*shift.Record) {}, true},
		{"short start", func(r *shift.Record) { r.Time = "930-1700" }, true},
		{"hour out of range", func(r *shift.Record) { r.Time = "2500-0100" }, false},
		{"minute out of range", func(r *shift.Record) { r.Time = "0760-1500" }, false},
		{"bad date", func(r *shift.Record) { r.Date = "2025-02-30" }, false},
		{"empty label", func(r *shift.Record) { r.Label = " " }, false},
		{"empty person", func(r *shift.Record) { r.Person = "" }, false},
		{"empty site", func(r *shift.Record) { r.Site = "" }, false},
		{"unknown role", func(r *shift.Record) { r.Role = shift.RoleUnknown }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := scribe("2025-03-01", "A", "0700-1500", "Molly")
			tc.mod(&rec)
			err := reconcile.ValidateRecord(rec)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateDedupesSortsAndStandardizes(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r, s := newReconciler(t, now)
	ctx := context.Background()

	input := []shift.Record{
		scribe("2025-03-02", "B", "1100-1930", "Pat"),
		scribe("2025-03-01", "C", "1400-2200", "Nora"),
		scribe("2025-03-01", "A", "0700-1500", "Molly"),
		scribe("2025-03-01", "A", "0700-1500", "Molly"),
		{Date: "2025-03-01", Label: "A", Time: "0700-1500", Person: "SMITH", Role: shift.RolePhysician, Site: "St Joseph/CHOC Physician"},
		scribe("2025-03-01", "Z", "2500-0100", "Bad"),
	}
	result, err := r.Update(ctx, input)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if result.Accepted != 4 || result.Rejected != 1 || result.Duplicates != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.RefreshedAt.Equal(now) {
		t.Fatalf("RefreshedAt = %v, want %v", result.RefreshedAt, now)
	}

	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	reconcile.SortRecords(got)
	want := []shift.Record{
		scribe("2025-03-01", "A", "0700-1500", "Molly"),
		{Date: "2025-03-01", Label: "A", Time: "0700-1500", Person: "Dr. SMITH", Role: shift.RolePhysician, Site: "St Joseph/CHOC Physician"},
		scribe("2025-03-01", "C", "1400-2200", "Nora"),
		scribe("2025-03-02", "B", "1100-1930", "Pat"),
	}
	if diff := cmp.Diff(want, got, ignoreUpdated); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if input[4].Person != "SMITH" {
		t.Fatal("expected caller records to be left unmodified")
	}
}

func TestUpdateWithNoValidRecordsKeepsSnapshot(t *testing.T) {
	r, s := newReconciler(t, time.Now())
	ctx := context.Background()
	if _, err := r.Update(ctx, []shift.Record{scribe("2025-03-01", "A", "0700-1500", "Molly")}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	_, err := r.Update(ctx, []shift.Record{scribe("bad", "A", "0700-1500", "Molly")})
	if !errors.Is(err, reconcile.ErrEmptySnapshot) {
		t.Fatalf("expected ErrEmptySnapshot, got %v", err)
	}
	got, _ := s.Snapshot(ctx)
	if len(got) != 1 {
		t.Fatalf("expected previous snapshot to survive, got %d records", len(got))
	}
}

func TestDiffClassifiesChanges(t *testing.T) {
	old := []shift.Record{
		scribe("2025-03-01", "A", "0700-1500", "Molly"),
		scribe("2025-03-01", "B", "1100-1930", "Pat"),
		scribe("2025-03-01", "C", "1400-2200", "Nora"),
		{Date: "2025-03-01", Label: "A", Time: "0700-1500", Person: "Dr. Old", Role: shift.RolePhysician, Site: "p"},
	}
	updated := []shift.Record{
		scribe("2025-03-01", "A", "0700-1500", "Molly"),
		scribe("2025-03-01", "B", "1100-1930", "Quinn"),
		scribe("2025-03-01", "D", "1800-0200", "Rae"),
		{Date: "2025-03-01", Label: "A", Time: "0700-1500", Person: "Dr. New", Role: shift.RolePhysician, Site: "p"},
	}
	changes := reconcile.Diff(old, updated)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].Type != shift.ChangeRemoved || changes[0].OldPerson() != "Nora" {
		t.Fatalf("expected removal of Nora first, got %+v", changes[0])
	}
	if changes[1].Type != shift.ChangeModified || changes[1].OldPerson() != "Pat" || changes[1].NewPerson() != "Quinn" {
		t.Fatalf("expected Pat -> Quinn, got %+v", changes[1])
	}
	if changes[2].Type != shift.ChangeAdded || changes[2].NewPerson() != "Rae" {
		t.Fatalf("expected addition of Rae, got %+v", changes[2])
	}
}

func TestDiffOfIdenticalSnapshotsIsEmpty(t *testing.T) {
	records := []shift.Record{scribe("2025-03-01", "A", "0700-1500", "Molly")}
	if changes := reconcile.Diff(records, records); len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestCompareSharedSlotIgnoresInputOrder(t *testing.T) {
	r, _ := newReconciler(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	ctx := context.Background()
	roster := []shift.Record{
		scribe("2025-03-01", "A", "0700-1500", "Nora"),
		scribe("2025-03-01", "A", "0700-1500", "Molly"),
	}
	if _, err := r.Update(ctx, roster); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	reversed := []shift.Record{roster[1], roster[0]}
	for _, input := range [][]shift.Record{roster, reversed} {
		changes, err := r.Compare(ctx, input)
		if err != nil {
			t.Fatalf("Compare returned error: %v", err)
		}
		if len(changes) != 0 {
			t.Fatalf("expected unchanged roster to produce no changes, got %+v", changes)
		}
	}

	removed, err := r.RemoveDuplicates(ctx)
	if err != nil {
		t.Fatalf("RemoveDuplicates returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 duplicate removed, got %d", removed)
	}
	changes, err := r.Compare(ctx, roster)
	if err != nil {
		t.Fatalf("Compare returned error: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected deduped snapshot to match the roster, got %+v", changes)
	}
}

func TestDiffSharedSlotIsOrderIndependent(t *testing.T) {
	a := scribe("2025-03-01", "A", "0700-1500", "Molly")
	b := scribe("2025-03-01", "A", "0700-1500", "Nora")
	if changes := reconcile.Diff([]shift.Record{a, b}, []shift.Record{b, a}); len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestCompareSuppressesAlertedChanges(t *testing.T) {
	r, _ := newReconciler(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if _, err := r.Update(ctx, []shift.Record{scribe("2025-03-01", "A", "0700-1500", "Molly")}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	fresh := []shift.Record{scribe("2025-03-01", "A", "0700-1500", "Nora")}
	changes, err := r.Compare(ctx, fresh)
	if err != nil {
		t.Fatalf("Compare returned error: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if err := r.MarkAlerted(ctx, changes); err != nil {
		t.Fatalf("MarkAlerted returned error: %v", err)
	}
	if err := r.MarkAlerted(ctx, changes); err != nil {
		t.Fatalf("second MarkAlerted returned error: %v", err)
	}

	again, err := r.Compare(ctx, fresh)
	if err != nil {
		t.Fatalf("Compare returned error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected alerted change to be suppressed, got %+v", again)
	}
}

func TestPruneAlertedChangesRejectsNegativeDays(t *testing.T) {
	r, _ := newReconciler(t, time.Now())
	if _, err := r.PruneAlertedChanges(context.Background(), -1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPruneAlertedChangesHonoursCutoff(t *testing.T) {
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	r, s := newReconciler(t, now)
	ctx := context.Background()
	old := shift.AlertedChange{Hash: "old", Type: shift.ChangeAdded, Date: "2025-02-01", Label: "A", Time: "0700-1500", AlertedAt: now.AddDate(0, 0, -40)}
	recent := shift.AlertedChange{Hash: "recent", Type: shift.ChangeAdded, Date: "2025-03-30", Label: "A", Time: "0700-1500", AlertedAt: now.AddDate(0, 0, -2)}
	if err := s.MarkAlerted(ctx, []shift.AlertedChange{old, recent}); err != nil {
		t.Fatalf("MarkAlerted returned error: %v", err)
	}
	removed, err := r.PruneAlertedChanges(ctx, 30)
	if err != nil {
		t.Fatalf("PruneAlertedChanges returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
	seen, _ := s.HasAlerted(ctx, []string{"old", "recent"})
	if seen["old"] || !seen["recent"] {
		t.Fatalf("unexpected alerted state %v", seen)
	}
}
