package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"shiftsync/internal/config"
	"shiftsync/internal/names"
	"shiftsync/internal/services"
	"shiftsync/internal/shift"
	"shiftsync/internal/store"
)

var drivers = []string{config.DriverSQLite, config.DriverFile}

func openStore(t *testing.T, driver string) store.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Storage.Driver = driver
	s, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("Open(%s) returned error: %v", driver, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Helper()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, openStore(t, driver))
		})
	}
}

func rec(date, label, timeRange, person string, role shift.Role) shift.Record {
	return shift.Record{Date: date, Label: label, Time: timeRange, Person: person, Role: role, Site: string(role) + " site"}
}

var ignoreUpdated = cmpopts.IgnoreFields(shift.Record{}, "UpdatedAt")

func TestReplaceSnapshotRoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		first := []shift.Record{
			rec("2025-03-01", "A", "0600-1400", "Jane Doe", shift.RoleScribe),
			rec("2025-03-01", "A", "0600-1400", "Dr. Smith", shift.RolePhysician),
			rec("2025-03-02", "B", "1400-2200", "Sam Lee", shift.RoleScribe),
		}
		refreshed := time.Date(2025, 3, 1, 5, 0, 0, 0, time.UTC)
		if err := s.ReplaceSnapshot(ctx, first, refreshed); err != nil {
			t.Fatalf("ReplaceSnapshot returned error: %v", err)
		}
		got, err := s.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot returned error: %v", err)
		}
		if diff := cmp.Diff(first, got, ignoreUpdated); diff != "" {
			t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
		}
		if !got[0].UpdatedAt.Equal(refreshed) {
			t.Fatalf("UpdatedAt = %v, want %v", got[0].UpdatedAt, refreshed)
		}

		second := []shift.Record{rec("2025-03-03", "C", "0700-1500", "Ana Ruiz", shift.RoleScribe)}
		if err := s.ReplaceSnapshot(ctx, second, refreshed.Add(time.Hour)); err != nil {
			t.Fatalf("ReplaceSnapshot returned error: %v", err)
		}
		got, err = s.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot returned error: %v", err)
		}
		if diff := cmp.Diff(second, got, ignoreUpdated); diff != "" {
			t.Fatalf("snapshot not replaced (-want +got):\n%s", diff)
		}

		day, err := s.ShiftsForDate(ctx, "2025-03-03")
		if err != nil || len(day) != 1 {
			t.Fatalf("ShiftsForDate = %v, %v", day, err)
		}
	})
}

func TestReplaceSnapshotCollapsesIdentityDuplicates(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		r := rec("2025-03-01", "A", "0600-1400", "Jane Doe", shift.RoleScribe)
		if err := s.ReplaceSnapshot(ctx, []shift.Record{r, r}, time.Now()); err != nil {
			t.Fatalf("ReplaceSnapshot returned error: %v", err)
		}
		got, err := s.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot returned error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
	})
}

func TestDuplicateRepairKeepsNewest(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		older := rec("2025-03-01", "A", "0600-1400", "Old Person", shift.RoleScribe)
		older.UpdatedAt = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		newer := rec("2025-03-01", "A", "0600-1400", "New Person", shift.RoleScribe)
		newer.UpdatedAt = time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
		tieA := rec("2025-03-02", "B", "0700-1500", "First", shift.RoleScribe)
		tieB := rec("2025-03-02", "B", "0700-1500", "Second", shift.RoleScribe)
		other := rec("2025-03-01", "A", "0600-1400", "Dr. Kim", shift.RolePhysician)

		if err := s.ReplaceSnapshot(ctx, []shift.Record{newer, older, tieA, tieB, other}, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)); err != nil {
			t.Fatalf("ReplaceSnapshot returned error: %v", err)
		}

		count, err := s.CountDuplicates(ctx)
		if err != nil {
			t.Fatalf("CountDuplicates returned error: %v", err)
		}
		if count != 2 {
			t.Fatalf("CountDuplicates = %d, want 2", count)
		}

		removed, err := s.RemoveDuplicates(ctx)
		if err != nil {
			t.Fatalf("RemoveDuplicates returned error: %v", err)
		}
		if removed != 2 {
			t.Fatalf("RemoveDuplicates = %d, want 2", removed)
		}

		got, err := s.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot returned error: %v", err)
		}
		persons := make([]string, 0, len(got))
		for _, r := range got {
			persons = append(persons, r.Person)
		}
		want := []string{"New Person", "Second", "Dr. Kim"}
		if diff := cmp.Diff(want, persons); diff != "" {
			t.Fatalf("survivors mismatch (-want +got):\n%s", diff)
		}

		if count, _ := s.CountDuplicates(ctx); count != 0 {
			t.Fatalf("duplicates remain after repair: %d", count)
		}
		if removed, _ := s.RemoveDuplicates(ctx); removed != 0 {
			t.Fatalf("second repair removed %d rows", removed)
		}
	})
}

func TestAlertedMarkersAndPrune(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		old := shift.AlertedChange{Hash: "h-old", Type: shift.ChangeAdded, Date: "2025-03-01", Label: "A", Time: "0600-1400",
			NewPerson: "Jane", AlertedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		recent := shift.AlertedChange{Hash: "h-new", Type: shift.ChangeRemoved, Date: "2025-03-02", Label: "B", Time: "0700-1500",
			OldPerson: "Sam", AlertedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}

		if err := s.MarkAlerted(ctx, []shift.AlertedChange{old, recent}); err != nil {
			t.Fatalf("MarkAlerted returned error: %v", err)
		}
		if err := s.MarkAlerted(ctx, []shift.AlertedChange{old}); err != nil {
			t.Fatalf("re-marking returned error: %v", err)
		}

		found, err := s.HasAlerted(ctx, []string{"h-old", "h-new", "h-missing"})
		if err != nil {
			t.Fatalf("HasAlerted returned error: %v", err)
		}
		if diff := cmp.Diff(map[string]bool{"h-old": true, "h-new": true}, found); diff != "" {
			t.Fatalf("HasAlerted mismatch (-want +got):\n%s", diff)
		}

		pruned, err := s.PruneAlerted(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("PruneAlerted returned error: %v", err)
		}
		if pruned != 1 {
			t.Fatalf("PruneAlerted = %d, want 1", pruned)
		}
		found, _ = s.HasAlerted(ctx, []string{"h-old", "h-new"})
		if found["h-old"] || !found["h-new"] {
			t.Fatalf("unexpected markers after prune: %v", found)
		}
	})
}

func TestHasAlertedManyHashes(t *testing.T) {
	s := openStore(t, config.DriverSQLite)
	ctx := context.Background()
	hashes := make([]string, 0, 1200)
	var changes []shift.AlertedChange
	for i := 0; i < 1200; i++ {
		h := fmt.Sprintf("hash-%04d", i)
		hashes = append(hashes, h)
		if i%2 == 0 {
			changes = append(changes, shift.AlertedChange{Hash: h, Type: shift.ChangeAdded, AlertedAt: time.Now()})
		}
	}
	if err := s.MarkAlerted(ctx, changes); err != nil {
		t.Fatalf("MarkAlerted returned error: %v", err)
	}
	found, err := s.HasAlerted(ctx, hashes)
	if err != nil {
		t.Fatalf("HasAlerted returned error: %v", err)
	}
	if len(found) != 600 {
		t.Fatalf("found %d hashes, want 600", len(found))
	}
}

func TestLegendPersistence(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		if _, ok, err := s.LoadLegend(ctx); err != nil || ok {
			t.Fatalf("empty store LoadLegend = ok %v err %v", ok, err)
		}
		legend := names.Legend{
			Physicians: map[string]string{"SMITH": "Dr. Smith"},
			MLPs:       map[string]string{"GREEN": "Geoffrey Green"},
		}
		if err := s.SaveLegend(ctx, legend); err != nil {
			t.Fatalf("SaveLegend returned error: %v", err)
		}
		got, ok, err := s.LoadLegend(ctx)
		if err != nil || !ok {
			t.Fatalf("LoadLegend = ok %v err %v", ok, err)
		}
		if diff := cmp.Diff(legend, got); diff != "" {
			t.Fatalf("legend mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestStatsAndHealth(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		refreshed := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
		records := []shift.Record{
			rec("2025-03-05", "A", "0600-1400", "Jane", shift.RoleScribe),
			rec("2025-03-01", "B", "0700-1500", "Sam", shift.RoleScribe),
		}
		if err := s.ReplaceSnapshot(ctx, records, refreshed); err != nil {
			t.Fatalf("ReplaceSnapshot returned error: %v", err)
		}
		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats returned error: %v", err)
		}
		if stats.Records != 2 || stats.EarliestDate != "2025-03-01" || stats.LatestDate != "2025-03-05" {
			t.Fatalf("unexpected stats: %+v", stats)
		}
		if !stats.LastRefresh.Equal(refreshed) {
			t.Fatalf("LastRefresh = %v, want %v", stats.LastRefresh, refreshed)
		}

		health, err := s.CheckHealth(ctx)
		if err != nil {
			t.Fatalf("CheckHealth returned error: %v", err)
		}
		if !health.Healthy() {
			t.Fatalf("expected healthy store: %+v", health)
		}
	})
}

func TestFileStoreReportsCorruptDocument(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Storage.Driver = config.DriverFile
	s, err := store.Open(&cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer s.Close()

	if err := os.WriteFile(filepath.Join(cfg.Paths.DataDir, store.ShiftsFile), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	_, err = s.Snapshot(context.Background())
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	health, err := s.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth returned error: %v", err)
	}
	if health.Healthy() {
		t.Fatalf("corrupt store reported healthy")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Storage.Driver = "postgres"
	if _, err := store.Open(&cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
