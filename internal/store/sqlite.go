package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shiftsync/internal/config"
	"shiftsync/internal/names"
	"shiftsync/internal/shift"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	// hashChunk keeps IN lists under SQLite's variable limit.
	hashChunk = 500
)

const shiftColumns = "id, date, label, time, person, role, site, created_at, updated_at"

type sqliteStore struct {
	db   *sql.DB
	path string
}

func openSQLite(path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	s := &sqliteStore{db: db, path: path}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) initSchema(ctx context.Context) error {
	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild it on the next refresh)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *sqliteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *sqliteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// inTx runs fn in a transaction, retrying the whole transaction when the
// database is busy.
func (s *sqliteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func scanRow(scanner interface{ Scan(dest ...any) error }) (row, error) {
	var r row
	err := scanner.Scan(&r.ID, &r.Date, &r.Label, &r.Time, &r.Person, &r.Role, &r.Site, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *sqliteStore) queryRows(ctx context.Context, query string, args ...any) ([]row, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func rowsToRecords(rows []row) []shift.Record {
	out := make([]shift.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}

func (s *sqliteStore) Snapshot(ctx context.Context) ([]shift.Record, error) {
	rows, err := s.queryRows(ctx, "SELECT "+shiftColumns+" FROM shifts ORDER BY id")
	if err != nil {
		return nil, storageError("load snapshot", err)
	}
	return rowsToRecords(rows), nil
}

func (s *sqliteStore) ShiftsForDate(ctx context.Context, date string) ([]shift.Record, error) {
	rows, err := s.queryRows(ctx, "SELECT "+shiftColumns+" FROM shifts WHERE date = ? ORDER BY id", date)
	if err != nil {
		return nil, storageError("load shifts for date", err)
	}
	return rowsToRecords(rows), nil
}

func (s *sqliteStore) ReplaceSnapshot(ctx context.Context, records []shift.Record, refreshedAt time.Time) error {
	ctx = ensureContext(ctx)
	records = uniqueByKey(records)
	stamp := formatTime(refreshedAt)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM shifts"); err != nil {
			return fmt.Errorf("clear shifts: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO shifts (date, label, time, person, role, site, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, rec := range records {
			updated := stamp
			if !rec.UpdatedAt.IsZero() {
				updated = formatTime(rec.UpdatedAt)
			}
			if _, err := stmt.ExecContext(ctx, rec.Date, rec.Label, rec.Time, rec.Person, string(rec.Role), rec.Site, stamp, updated); err != nil {
				return fmt.Errorf("insert shift %s %s %s: %w", rec.Date, rec.Label, rec.Time, err)
			}
		}
		return setMetadata(ctx, tx, metaLastRefresh, stamp, stamp)
	})
	if err != nil {
		return storageError("replace snapshot", err)
	}
	return nil
}

func setMetadata(ctx context.Context, tx *sql.Tx, key, value, stamp string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, stamp)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) getMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

const rankedShifts = `SELECT id, ROW_NUMBER() OVER (
	PARTITION BY date, label, time, role
	ORDER BY updated_at DESC, id DESC
) AS rn FROM shifts`

func (s *sqliteStore) CountDuplicates(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM ("+rankedShifts+") WHERE rn > 1").Scan(&count)
	if err != nil {
		return 0, storageError("count duplicates", err)
	}
	return count, nil
}

func (s *sqliteStore) RemoveDuplicates(ctx context.Context) (int, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM shifts WHERE id IN (SELECT id FROM ("+rankedShifts+") WHERE rn > 1)")
	if err != nil {
		return 0, storageError("remove duplicates", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("remove duplicates", err)
	}
	return int(affected), nil
}

func (s *sqliteStore) HasAlerted(ctx context.Context, hashes []string) (map[string]bool, error) {
	ctx = ensureContext(ctx)
	found := make(map[string]bool, len(hashes))
	for start := 0; start < len(hashes); start += hashChunk {
		end := min(start+hashChunk, len(hashes))
		chunk := hashes[start:end]
		args := make([]any, len(chunk))
		for i, h := range chunk {
			args[i] = h
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT hash FROM alerted_changes WHERE hash IN ("+makePlaceholders(len(chunk))+")", args...)
		if err != nil {
			return nil, storageError("check alerted", err)
		}
		for rows.Next() {
			var hash string
			if err := rows.Scan(&hash); err != nil {
				rows.Close()
				return nil, storageError("check alerted", err)
			}
			found[hash] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, storageError("check alerted", err)
		}
	}
	return found, nil
}

func (s *sqliteStore) MarkAlerted(ctx context.Context, changes []shift.AlertedChange) error {
	if len(changes) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO alerted_changes (hash, change_type, date, label, time, old_person, new_person, site, alerted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(hash) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare alert insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range changes {
			if _, err := stmt.ExecContext(ctx, c.Hash, string(c.Type), c.Date, c.Label, c.Time,
				nullableString(c.OldPerson), nullableString(c.NewPerson), nullableString(c.Site),
				formatTime(c.AlertedAt)); err != nil {
				return fmt.Errorf("insert alert %s: %w", c.Hash, err)
			}
		}
		return nil
	})
	if err != nil {
		return storageError("mark alerted", err)
	}
	return nil
}

func (s *sqliteStore) PruneAlerted(ctx context.Context, before time.Time) (int, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM alerted_changes WHERE alerted_at < ?", formatTime(before))
	if err != nil {
		return 0, storageError("prune alerted", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("prune alerted", err)
	}
	return int(affected), nil
}

func (s *sqliteStore) LoadLegend(ctx context.Context) (names.Legend, bool, error) {
	value, ok, err := s.getMetadata(ctx, metaNameLegend)
	if err != nil {
		return names.Legend{}, false, storageError("load legend", err)
	}
	if !ok {
		return names.Legend{}, false, nil
	}
	var legend names.Legend
	if err := json.Unmarshal([]byte(value), &legend); err != nil {
		return names.Legend{}, false, storageError("decode legend", err)
	}
	return legend.Clone(), true, nil
}

func (s *sqliteStore) SaveLegend(ctx context.Context, legend names.Legend) error {
	// encoding/json writes map keys sorted, so the document is key-ordered.
	data, err := json.MarshalIndent(legend.Clone(), "", "  ")
	if err != nil {
		return storageError("encode legend", err)
	}
	ctx = ensureContext(ctx)
	stamp := formatTime(time.Now())
	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return setMetadata(ctx, tx, metaNameLegend, string(data), stamp)
	}); err != nil {
		return storageError("save legend", err)
	}
	return nil
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{Driver: config.DriverSQLite, Path: s.path}
	var earliest, latest sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1), MIN(date), MAX(date) FROM shifts").
		Scan(&stats.Records, &earliest, &latest); err != nil {
		return Stats{}, storageError("stats", err)
	}
	stats.EarliestDate = earliest.String
	stats.LatestDate = latest.String
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM alerted_changes").Scan(&stats.AlertedChanges); err != nil {
		return Stats{}, storageError("stats", err)
	}
	refreshed, ok, err := s.getMetadata(ctx, metaLastRefresh)
	if err != nil {
		return Stats{}, storageError("stats", err)
	}
	if ok {
		stats.LastRefresh = parseTimeString(refreshed)
	}
	return stats, nil
}

func (s *sqliteStore) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{Driver: config.DriverSQLite, Path: s.path}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.Exists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.Readable = true

	var result string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&result); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.Integrity = strings.EqualFold(result, "ok")
	if !health.Integrity {
		health.Error = result
	}
	return health, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
