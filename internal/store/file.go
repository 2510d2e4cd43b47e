package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"shiftsync/internal/config"
	"shiftsync/internal/fileutil"
	"shiftsync/internal/names"
	"shiftsync/internal/shift"
)

// File names used by the file backend inside the data directory.
const (
	ShiftsFile    = "shifts.json"
	AlertsFile    = "alerted_changes.json"
	LegendFile    = "name_legend.json"
	storeLockFile = "store.lock"
)

type shiftsDocument struct {
	RefreshedAt string `json:"refreshed_at,omitempty"`
	NextID      int64  `json:"next_id"`
	Shifts      []row  `json:"shifts"`
}

type alertRow struct {
	Hash      string `json:"hash"`
	Type      string `json:"change_type"`
	Date      string `json:"date"`
	Label     string `json:"label"`
	Time      string `json:"time"`
	OldPerson string `json:"old_person,omitempty"`
	NewPerson string `json:"new_person,omitempty"`
	Site      string `json:"site,omitempty"`
	AlertedAt string `json:"alerted_at"`
}

// fileStore keeps each document as a JSON file. Writers hold an exclusive
// flock on store.lock so another shiftsync process (a CLI command next to
// the daemon) never observes a half-applied change; every file is written to
// a temp file and renamed into place.
type fileStore struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

func openFile(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &fileStore{dir: dir, lock: flock.New(filepath.Join(dir, storeLockFile))}, nil
}

func (s *fileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// withLock serializes fn against this process and other processes.
func (s *fileStore) withLock(ctx context.Context, shared bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ensureContext(ctx).Err(); err != nil {
		return err
	}
	var err error
	if shared {
		err = s.lock.RLock()
	} else {
		err = s.lock.Lock()
	}
	if err != nil {
		return fmt.Errorf("acquire store lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func readJSON(path string, dst any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

func (s *fileStore) loadShifts() (shiftsDocument, error) {
	var doc shiftsDocument
	if _, err := readJSON(s.path(ShiftsFile), &doc); err != nil {
		return shiftsDocument{}, err
	}
	return doc, nil
}

func (s *fileStore) loadAlerts() ([]alertRow, error) {
	var alerts []alertRow
	if _, err := readJSON(s.path(AlertsFile), &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *fileStore) Snapshot(ctx context.Context) ([]shift.Record, error) {
	var out []shift.Record
	err := s.withLock(ctx, true, func() error {
		doc, err := s.loadShifts()
		if err != nil {
			return err
		}
		out = rowsToRecords(doc.Shifts)
		return nil
	})
	if err != nil {
		return nil, storageError("load snapshot", err)
	}
	return out, nil
}

func (s *fileStore) ShiftsForDate(ctx context.Context, date string) ([]shift.Record, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return shift.FilterDate(all, date), nil
}

func (s *fileStore) ReplaceSnapshot(ctx context.Context, records []shift.Record, refreshedAt time.Time) error {
	records = uniqueByKey(records)
	stamp := formatTime(refreshedAt)
	err := s.withLock(ctx, false, func() error {
		prev, err := s.loadShifts()
		if err != nil {
			return err
		}
		doc := shiftsDocument{RefreshedAt: stamp, NextID: prev.NextID, Shifts: make([]row, 0, len(records))}
		for _, rec := range records {
			doc.NextID++
			updated := stamp
			if !rec.UpdatedAt.IsZero() {
				updated = formatTime(rec.UpdatedAt)
			}
			doc.Shifts = append(doc.Shifts, row{
				ID: doc.NextID, Date: rec.Date, Label: rec.Label, Time: rec.Time, Person: rec.Person,
				Role: string(rec.Role), Site: rec.Site, CreatedAt: stamp, UpdatedAt: updated,
			})
		}
		return writeJSON(s.path(ShiftsFile), doc)
	})
	if err != nil {
		return storageError("replace snapshot", err)
	}
	return nil
}

func (s *fileStore) CountDuplicates(ctx context.Context) (int, error) {
	var count int
	err := s.withLock(ctx, true, func() error {
		doc, err := s.loadShifts()
		if err != nil {
			return err
		}
		count = len(duplicateIDs(doc.Shifts))
		return nil
	})
	if err != nil {
		return 0, storageError("count duplicates", err)
	}
	return count, nil
}

func (s *fileStore) RemoveDuplicates(ctx context.Context) (int, error) {
	var removed int
	err := s.withLock(ctx, false, func() error {
		doc, err := s.loadShifts()
		if err != nil {
			return err
		}
		losers := duplicateIDs(doc.Shifts)
		if len(losers) == 0 {
			return nil
		}
		drop := make(map[int64]struct{}, len(losers))
		for _, id := range losers {
			drop[id] = struct{}{}
		}
		kept := doc.Shifts[:0]
		for _, r := range doc.Shifts {
			if _, ok := drop[r.ID]; !ok {
				kept = append(kept, r)
			}
		}
		doc.Shifts = kept
		removed = len(losers)
		return writeJSON(s.path(ShiftsFile), doc)
	})
	if err != nil {
		return 0, storageError("remove duplicates", err)
	}
	return removed, nil
}

func (s *fileStore) HasAlerted(ctx context.Context, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	err := s.withLock(ctx, true, func() error {
		alerts, err := s.loadAlerts()
		if err != nil {
			return err
		}
		wanted := make(map[string]struct{}, len(hashes))
		for _, h := range hashes {
			wanted[h] = struct{}{}
		}
		for _, a := range alerts {
			if _, ok := wanted[a.Hash]; ok {
				found[a.Hash] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageError("check alerted", err)
	}
	return found, nil
}

func (s *fileStore) MarkAlerted(ctx context.Context, changes []shift.AlertedChange) error {
	if len(changes) == 0 {
		return nil
	}
	err := s.withLock(ctx, false, func() error {
		alerts, err := s.loadAlerts()
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(alerts))
		for _, a := range alerts {
			known[a.Hash] = struct{}{}
		}
		for _, c := range changes {
			if _, ok := known[c.Hash]; ok {
				continue
			}
			known[c.Hash] = struct{}{}
			alerts = append(alerts, alertRow{
				Hash: c.Hash, Type: string(c.Type), Date: c.Date, Label: c.Label, Time: c.Time,
				OldPerson: c.OldPerson, NewPerson: c.NewPerson, Site: c.Site, AlertedAt: formatTime(c.AlertedAt),
			})
		}
		return writeJSON(s.path(AlertsFile), alerts)
	})
	if err != nil {
		return storageError("mark alerted", err)
	}
	return nil
}

func (s *fileStore) PruneAlerted(ctx context.Context, before time.Time) (int, error) {
	cutoff := formatTime(before)
	var removed int
	err := s.withLock(ctx, false, func() error {
		alerts, err := s.loadAlerts()
		if err != nil {
			return err
		}
		kept := alerts[:0]
		for _, a := range alerts {
			if a.AlertedAt < cutoff {
				removed++
				continue
			}
			kept = append(kept, a)
		}
		if removed == 0 {
			return nil
		}
		return writeJSON(s.path(AlertsFile), kept)
	})
	if err != nil {
		return 0, storageError("prune alerted", err)
	}
	return removed, nil
}

func (s *fileStore) LoadLegend(ctx context.Context) (names.Legend, bool, error) {
	var legend names.Legend
	var found bool
	err := s.withLock(ctx, true, func() error {
		var err error
		found, err = readJSON(s.path(LegendFile), &legend)
		return err
	})
	if err != nil {
		return names.Legend{}, false, storageError("load legend", err)
	}
	if !found {
		return names.Legend{}, false, nil
	}
	return legend.Clone(), true, nil
}

func (s *fileStore) SaveLegend(ctx context.Context, legend names.Legend) error {
	err := s.withLock(ctx, false, func() error {
		return writeJSON(s.path(LegendFile), legend.Clone())
	})
	if err != nil {
		return storageError("save legend", err)
	}
	return nil
}

func (s *fileStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Driver: config.DriverFile, Path: s.dir}
	err := s.withLock(ctx, true, func() error {
		doc, err := s.loadShifts()
		if err != nil {
			return err
		}
		alerts, err := s.loadAlerts()
		if err != nil {
			return err
		}
		stats.Records = len(doc.Shifts)
		stats.AlertedChanges = len(alerts)
		stats.LastRefresh = parseTimeString(doc.RefreshedAt)
		dates := make([]string, 0, len(doc.Shifts))
		for _, r := range doc.Shifts {
			dates = append(dates, r.Date)
		}
		if len(dates) > 0 {
			sort.Strings(dates)
			stats.EarliestDate = dates[0]
			stats.LatestDate = dates[len(dates)-1]
		}
		return nil
	})
	if err != nil {
		return Stats{}, storageError("stats", err)
	}
	return stats, nil
}

func (s *fileStore) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Driver: config.DriverFile, Path: s.dir}
	info, err := os.Stat(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat store directory: %w", err)
	}
	if !info.IsDir() {
		return health, fmt.Errorf("store path %q is not a directory", s.dir)
	}
	health.Exists = true
	err = s.withLock(ctx, true, func() error {
		if _, err := s.loadShifts(); err != nil {
			return err
		}
		if _, err := s.loadAlerts(); err != nil {
			return err
		}
		var legend names.Legend
		_, err := readJSON(s.path(LegendFile), &legend)
		return err
	})
	health.Readable = true
	if err != nil {
		health.Error = err.Error()
		return health, nil
	}
	health.Integrity = true
	return health, nil
}

func (s *fileStore) Close() error {
	return s.lock.Close()
}
