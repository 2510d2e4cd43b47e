package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"shiftsync/internal/logging"
	"shiftsync/internal/services"
	"shiftsync/internal/shift"
)

// ErrEmptySnapshot is returned by Update when no record survives
// validation. The stored snapshot is left untouched.
var ErrEmptySnapshot = errors.New("no valid records to commit")

// Storage is the persistence the reconciler needs.
type Storage interface {
	Snapshot(ctx context.Context) ([]shift.Record, error)
	ReplaceSnapshot(ctx context.Context, records []shift.Record, refreshedAt time.Time) error
	CountDuplicates(ctx context.Context) (int, error)
	RemoveDuplicates(ctx context.Context) (int, error)
	HasAlerted(ctx context.Context, hashes []string) (map[string]bool, error)
	MarkAlerted(ctx context.Context, changes []shift.AlertedChange) error
	PruneAlerted(ctx context.Context, before time.Time) (int, error)
}

// Standardizer maps raw person tokens to display names.
type Standardizer interface {
	Standardize(raw string, role shift.Role) string
}

// UpdateResult summarizes one committed snapshot.
type UpdateResult struct {
	Accepted    int
	Rejected    int
	Duplicates  int
	Rejections  []Rejection
	RefreshedAt time.Time
}

// Reconciler validates, commits, and diffs roster snapshots.
type Reconciler struct {
	store  Storage
	names  Standardizer
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source used for commit and alert stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Reconciler.
func New(store Storage, names Standardizer, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		names:  names,
		logger: logging.NewComponentLogger(logger, "reconcile"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// standardize returns trimmed copies with person names standardized. When
// scribesOnly is set, other roles are skipped entirely so no legend state
// is touched.
func (r *Reconciler) standardize(records []shift.Record, scribesOnly bool) []shift.Record {
	out := make([]shift.Record, 0, len(records))
	for _, rec := range records {
		if scribesOnly && rec.Role != shift.RoleScribe {
			continue
		}
		rec.Date = strings.TrimSpace(rec.Date)
		rec.Label = strings.TrimSpace(rec.Label)
		rec.Time = strings.TrimSpace(rec.Time)
		rec.Site = strings.TrimSpace(rec.Site)
		rec.Person = strings.TrimSpace(rec.Person)
		if r.names != nil {
			rec.Person = r.names.Standardize(rec.Person, rec.Role)
		}
		out = append(out, rec)
	}
	return out
}

// dedupe keeps the first record for each identity key.
func dedupe(records []shift.Record) ([]shift.Record, int) {
	seen := make(map[shift.Key]struct{}, len(records))
	out := make([]shift.Record, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.Key()]; dup {
			continue
		}
		seen[rec.Key()] = struct{}{}
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}

// SortRecords orders records by date, start, end, label, then person.
func SortRecords(records []shift.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		ra, _ := shift.ParseRange(a.Time)
		rb, _ := shift.ParseRange(b.Time)
		if ra.Start != rb.Start {
			return ra.Start < rb.Start
		}
		if ra.End != rb.End {
			return ra.End < rb.End
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Person < b.Person
	})
}

// Update standardizes, validates, dedupes, sorts, and atomically replaces
// the stored snapshot. The caller's slice is not modified.
func (r *Reconciler) Update(ctx context.Context, records []shift.Record) (UpdateResult, error) {
	valid, rejected := Validate(r.standardize(records, false))
	unique, dups := dedupe(valid)
	SortRecords(unique)

	result := UpdateResult{
		Accepted:   len(unique),
		Rejected:   len(rejected),
		Duplicates: dups,
		Rejections: rejected,
	}
	for _, rej := range rejected {
		r.logger.Debug("record rejected",
			logging.String("date", rej.Record.Date),
			logging.String("label", rej.Record.Label),
			logging.String("time", rej.Record.Time),
			logging.String("role", string(rej.Record.Role)),
			logging.String("reason", rej.Reason),
		)
	}
	if len(unique) == 0 {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "no valid records; snapshot kept", "snapshot_empty",
			logging.Int("input", len(records)),
			logging.Int("rejected", len(rejected)),
			logging.String(logging.FieldErrorHint, "check the source pages and parser vocabulary"),
			logging.String(logging.FieldImpact, "previous snapshot remains authoritative"),
		)
		return result, ErrEmptySnapshot
	}

	refreshedAt := r.now().UTC()
	if err := r.store.ReplaceSnapshot(ctx, unique, refreshedAt); err != nil {
		return result, fmt.Errorf("replace snapshot: %w", err)
	}
	result.RefreshedAt = refreshedAt

	logging.WithContext(ctx, r.logger).Info("snapshot replaced",
		logging.Int("accepted", result.Accepted),
		logging.Int("rejected", result.Rejected),
		logging.Int("duplicates", result.Duplicates),
		logging.String(logging.FieldEventType, "snapshot_replaced"),
	)
	return result, nil
}

// Compare diffs the incoming scribe records against the stored snapshot and
// omits changes already marked alerted. It must run before Update.
func (r *Reconciler) Compare(ctx context.Context, records []shift.Record) ([]shift.Change, error) {
	stored, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	incoming, _ := Validate(r.standardize(records, true))
	changes := Diff(stored, incoming)
	if len(changes) == 0 {
		return nil, nil
	}

	hashes := make([]string, len(changes))
	for i, c := range changes {
		hashes[i] = c.Hash()
	}
	alerted, err := r.store.HasAlerted(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("check alerted changes: %w", err)
	}
	out := make([]shift.Change, 0, len(changes))
	for i, c := range changes {
		if alerted[hashes[i]] {
			continue
		}
		out = append(out, c)
	}
	if suppressed := len(changes) - len(out); suppressed > 0 {
		logging.WithContext(ctx, r.logger).Debug("suppressed alerted changes",
			logging.Int("suppressed", suppressed),
		)
	}
	return out, nil
}

type slot struct {
	date, label, time string
}

func slotOf(rec shift.Record) slot {
	return slot{rec.Date, rec.Label, rec.Time}
}

// Diff compares scribe records keyed by (date, label, time). Both sides are
// put in snapshot order first, so input order never matters. Removals come
// first, then additions and modifications. When a slot repeats, the last
// record for it in snapshot order is the one compared, which is the row
// RemoveDuplicates keeps.
func Diff(old, new []shift.Record) []shift.Change {
	oldScribes := shift.FilterRole(old, shift.RoleScribe)
	newScribes := shift.FilterRole(new, shift.RoleScribe)
	SortRecords(oldScribes)
	SortRecords(newScribes)

	oldBySlot := make(map[slot]shift.Record, len(oldScribes))
	for _, rec := range oldScribes {
		oldBySlot[slotOf(rec)] = rec
	}
	newBySlot := make(map[slot]shift.Record, len(newScribes))
	for _, rec := range newScribes {
		newBySlot[slotOf(rec)] = rec
	}

	var changes []shift.Change
	emitted := make(map[slot]struct{})
	for _, rec := range oldScribes {
		key := slotOf(rec)
		if _, done := emitted[key]; done {
			continue
		}
		if _, ok := newBySlot[key]; !ok {
			emitted[key] = struct{}{}
			prev := oldBySlot[key]
			changes = append(changes, shift.Change{Type: shift.ChangeRemoved, Old: &prev})
		}
	}
	for _, rec := range newScribes {
		key := slotOf(rec)
		if _, done := emitted[key]; done {
			continue
		}
		emitted[key] = struct{}{}
		next := newBySlot[key]
		prev, existed := oldBySlot[key]
		switch {
		case !existed:
			changes = append(changes, shift.Change{Type: shift.ChangeAdded, New: &next})
		case prev.Person != next.Person:
			changes = append(changes, shift.Change{Type: shift.ChangeModified, Old: &prev, New: &next})
		}
	}
	return changes
}

// MarkAlerted records delivered changes so Compare suppresses them.
func (r *Reconciler) MarkAlerted(ctx context.Context, changes []shift.Change) error {
	if len(changes) == 0 {
		return nil
	}
	at := r.now().UTC()
	alerted := make([]shift.AlertedChange, 0, len(changes))
	for _, c := range changes {
		alerted = append(alerted, c.Alerted(at))
	}
	if err := r.store.MarkAlerted(ctx, alerted); err != nil {
		return fmt.Errorf("mark alerted: %w", err)
	}
	return nil
}

// CountDuplicates reports rows beyond the first in each
// (date, label, time, role) slot.
func (r *Reconciler) CountDuplicates(ctx context.Context) (int, error) {
	return r.store.CountDuplicates(ctx)
}

// RemoveDuplicates keeps the most recently updated row per slot.
func (r *Reconciler) RemoveDuplicates(ctx context.Context) (int, error) {
	removed, err := r.store.RemoveDuplicates(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logging.WithContext(ctx, r.logger).Info("duplicate rows removed",
			logging.Int("removed", removed),
			logging.String(logging.FieldEventType, "duplicates_removed"),
		)
	}
	return removed, nil
}

// PruneAlertedChanges deletes alert markers older than daysToKeep days.
func (r *Reconciler) PruneAlertedChanges(ctx context.Context, daysToKeep int) (int, error) {
	if daysToKeep < 0 {
		return 0, services.Wrap(services.ErrValidation, "reconcile", "prune alerted", fmt.Sprintf("days to keep must be >= 0, got %d", daysToKeep), nil)
	}
	cutoff := r.now().UTC().AddDate(0, 0, -daysToKeep)
	removed, err := r.store.PruneAlerted(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logging.WithContext(ctx, r.logger).Info("alerted changes pruned",
		logging.Int("removed", removed),
		logging.Int("days_to_keep", daysToKeep),
		logging.String(logging.FieldEventType, "alerts_pruned"),
	)
	return removed, nil
}
