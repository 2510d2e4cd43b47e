package display

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"shiftsync/internal/logging"
	"shiftsync/internal/pairing"
)

// Refresher re-renders registered targets.
type Refresher struct {
	store    DayReader
	pairer   pairing.Pairer
	grouping Grouping
	loc      *time.Location
	cutoff   int
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	targets map[string]Target
}

// Option customizes a Refresher.
type Option func(*Refresher)

// WithClock overrides the clock used to pick the relevant date.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithGrouping selects zone or period grouping.
func WithGrouping(g Grouping) Option {
	return func(r *Refresher) {
		r.grouping = g
	}
}

// NewRefresher builds a Refresher. After cutoffHour local time the view
// shows tomorrow.
func NewRefresher(store DayReader, pairer pairing.Pairer, loc *time.Location, cutoffHour int, logger *slog.Logger, opts ...Option) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	r := &Refresher{
		store:    store,
		pairer:   pairer,
		grouping: ByZone,
		loc:      loc,
		cutoff:   cutoffHour,
		now:      time.Now,
		logger:   logging.NewComponentLogger(logger, "display"),
		targets:  make(map[string]Target),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a target.
func (r *Refresher) Register(t Target) {
	r.mu.Lock()
	r.targets[t.ID()] = t
	r.mu.Unlock()
}

// Unregister removes a target.
func (r *Refresher) Unregister(id string) {
	r.mu.Lock()
	delete(r.targets, id)
	r.mu.Unlock()
}

// Targets returns the registered target IDs in sorted order.
func (r *Refresher) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.targets))
	for id := range r.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Refresher) snapshotTargets() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RefreshOnce renders the current view into every target. It returns the
// number of targets updated and the IDs that were deregistered.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, []string, error) {
	targets := r.snapshotTargets()
	if len(targets) == 0 {
		return 0, nil, nil
	}
	now := r.now()
	date := pairing.RelevantDate(now, r.loc, r.cutoff)
	view, err := BuildView(ctx, r.store, r.pairer, date, r.grouping, now.In(r.loc))
	if err != nil {
		return 0, nil, err
	}

	updated := 0
	var removed []string
	for _, t := range targets {
		err := t.Render(ctx, view)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, ErrTargetGone):
			r.Unregister(t.ID())
			removed = append(removed, t.ID())
			r.logger.Info("display target removed",
				logging.String("target", t.ID()),
				logging.String(logging.FieldEventType, "display_target_gone"),
			)
		default:
			r.logger.Warn("display refresh failed",
				logging.String("target", t.ID()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "target keeps its previous view until the next interval"),
			)
		}
	}
	return updated, removed, nil
}

// Run refreshes immediately and then every interval until ctx ends.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, _, err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("display refresh skipped", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
