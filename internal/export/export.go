// Package export writes roster snapshots as CSV for backups and ad hoc
// analysis.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"shiftsync/internal/fileutil"
	"shiftsync/internal/shift"
)

// Header is the CSV column order.
var Header = []string{"date", "label", "time", "person", "role", "site"}

// SnapshotReader is the storage needed to back up a snapshot.
type SnapshotReader interface {
	Snapshot(ctx context.Context) ([]shift.Record, error)
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []shift.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.Date, rec.Label, rec.Time, rec.Person, string(rec.Role), rec.Site}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// BackupName is the file name used for a backup taken at now.
func BackupName(now time.Time) string {
	return "shifts-" + now.Format("20060102") + ".csv"
}

// Backup writes the current snapshot to dir/shifts-YYYYMMDD.csv, replacing a
// backup already taken that day. It returns the path and row count.
func Backup(ctx context.Context, st SnapshotReader, dir string, now time.Time) (string, int, error) {
	records, err := st.Snapshot(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("load snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, BackupName(now))
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return WriteCSV(w, records)
	})
	if err != nil {
		return "", 0, fmt.Errorf("write backup: %w", err)
	}
	return path, len(records), nil
}
