package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"shiftsync/internal/config"
	"shiftsync/internal/names"
	"shiftsync/internal/shift"
)

// Store is the persistence API used by the reconciler, the normalizer, and
// the presentation layer.
type Store interface {
	// Snapshot returns every stored record in commit order.
	Snapshot(ctx context.Context) ([]shift.Record, error)
	// ShiftsForDate returns the stored records on date in commit order.
	ShiftsForDate(ctx context.Context, date string) ([]shift.Record, error)
	// ReplaceSnapshot atomically swaps the stored snapshot for records and
	// records refreshedAt as the last successful refresh. Records sharing an
	// identity key collapse to the first.
	ReplaceSnapshot(ctx context.Context, records []shift.Record, refreshedAt time.Time) error

	CountDuplicates(ctx context.Context) (int, error)
	RemoveDuplicates(ctx context.Context) (int, error)

	// HasAlerted reports which of hashes are already recorded as delivered.
	HasAlerted(ctx context.Context, hashes []string) (map[string]bool, error)
	// MarkAlerted records delivered changes. Re-marking a hash is a no-op.
	MarkAlerted(ctx context.Context, changes []shift.AlertedChange) error
	// PruneAlerted deletes markers alerted before the cutoff.
	PruneAlerted(ctx context.Context, before time.Time) (int, error)

	LoadLegend(ctx context.Context) (names.Legend, bool, error)
	SaveLegend(ctx context.Context, legend names.Legend) error

	Stats(ctx context.Context) (Stats, error)
	CheckHealth(ctx context.Context) (Health, error)
	Close() error
}

// Stats summarizes stored state for status output.
type Stats struct {
	Driver         string
	Path           string
	Records        int
	EarliestDate   string
	LatestDate     string
	LastRefresh    time.Time
	AlertedChanges int
}

// Health reports whether the backend is usable.
type Health struct {
	Driver    string
	Path      string
	Exists    bool
	Readable  bool
	Integrity bool
	Error     string
}

// Healthy reports whether every check passed.
func (h Health) Healthy() bool {
	return h.Exists && h.Readable && h.Integrity && h.Error == ""
}

// Open initializes the backend selected by storage.driver.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: config is required")
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case config.DriverSQLite, "":
		return openSQLite(cfg.DatabasePath())
	case config.DriverFile:
		return openFile(cfg.Paths.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
