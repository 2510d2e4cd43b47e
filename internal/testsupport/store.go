package testsupport

import (
	"context"
	"testing"
	"time"

	"shiftsync/internal/config"
	"shiftsync/internal/shift"
	"shiftsync/internal/store"
)

// MustOpenStore opens the configured store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// Scribe builds a scribe record on the default scribe site.
func Scribe(date, label, timeRange, person string) shift.Record {
	return shift.Record{Date: date, Label: label, Time: timeRange, Person: person, Role: shift.RoleScribe, Site: "St Joseph Scribe"}
}

// Physician builds a physician record.
func Physician(date, label, timeRange, person string) shift.Record {
	return shift.Record{Date: date, Label: label, Time: timeRange, Person: person, Role: shift.RolePhysician, Site: "St Joseph/CHOC Physician"}
}

// MLP builds a mid-level provider record.
func MLP(date, label, timeRange, person string) shift.Record {
	return shift.Record{Date: date, Label: label, Time: timeRange, Person: person, Role: shift.RoleMLP, Site: "St Joseph/CHOC MLP"}
}

// Seed replaces the stored snapshot with records.
func Seed(t testing.TB, s store.Store, records ...shift.Record) {
	t.Helper()

	if err := s.ReplaceSnapshot(context.Background(), records, time.Now().UTC()); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
}
