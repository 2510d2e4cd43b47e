package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"shiftsync/internal/config"
	"shiftsync/internal/logging"
	"shiftsync/internal/names"
	"shiftsync/internal/notifications"
	"shiftsync/internal/reconcile"
	"shiftsync/internal/retry"
	"shiftsync/internal/shift"
	"shiftsync/internal/source"
)

// Trigger names what started a cycle.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Collector gathers the raw roster for all sites.
type Collector interface {
	Collect(ctx context.Context, sites []config.Site) ([]shift.Record, []source.SiteResult, error)
}

// LegendSaver persists names learned during a cycle.
type LegendSaver interface {
	SaveUpdates(ctx context.Context) (names.Pending, error)
}

// Runner executes refresh cycles one at a time.
type Runner struct {
	sites      []config.Site
	collector  Collector
	reconciler *reconcile.Reconciler
	legend     LegendSaver
	notifier   notifications.Service
	policy     retry.Policy
	autoDedupe bool
	logger     *slog.Logger
	now        func() time.Time

	group singleflight.Group
	cycle sync.Mutex
	// commit is held from Compare through legend save so a CLI refresh and
	// the daemon never interleave on one data directory.
	commit *flock.Flock

	mu   sync.RWMutex
	last *Status
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithRetryPolicy replaces the retry policy derived from config.
func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithClock overrides the clock used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Runner from cfg.
func New(cfg *config.Config, collector Collector, reconciler *reconcile.Reconciler, legend LegendSaver, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Runner {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	r := &Runner{
		sites:      cfg.Source.Sites,
		collector:  collector,
		reconciler: reconciler,
		legend:     legend,
		notifier:   notifier,
		policy: retry.Policy{
			MaxAttempts: cfg.Refresh.MaxAttempts,
			Delays:      cfg.Backoff(),
		},
		autoDedupe: cfg.Refresh.AutoDedupe,
		logger:     logging.NewComponentLogger(logger, "refresh"),
		now:        time.Now,
		commit:     flock.New(cfg.CycleLockPath()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one cycle, or joins the cycle already in flight. shared
// reports whether the result came from another caller's cycle.
func (r *Runner) Run(ctx context.Context, trigger string) (status Status, err error) {
	v, err, shared := r.group.Do("cycle", func() (any, error) {
		return r.runCycle(ctx, trigger)
	})
	status, _ = v.(Status)
	status.Shared = shared
	return status, err
}

// Preview collects the roster and returns pending changes without
// committing anything.
func (r *Runner) Preview(ctx context.Context) ([]shift.Change, error) {
	records, _, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}
	changes, err := r.reconciler.Compare(ctx, records)
	if err != nil {
		return nil, err
	}
	SortChanges(changes)
	return changes, nil
}

// Last returns the status of the most recent completed cycle.
func (r *Runner) Last() (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Status{}, false
	}
	return *r.last, true
}

func (r *Runner) setLast(status Status) {
	r.mu.Lock()
	r.last = &status
	r.mu.Unlock()
}

// Exclusive runs fn while no cycle is in progress. Legend reloads go through
// here so the normalizer keeps a single writer.
func (r *Runner) Exclusive(fn func() error) error {
	r.cycle.Lock()
	defer r.cycle.Unlock()
	return fn()
}
