package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"shiftsync/internal/logging"
)

const legendDebounce = 500 * time.Millisecond

// legendWatcher reloads the name legend when its file is edited by hand.
type legendWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	name     string
	reload   func(context.Context) error
	debounce time.Duration
	logger   *slog.Logger
}

func newLegendWatcher(dir, name string, reload func(context.Context) error, logger *slog.Logger) (*legendWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &legendWatcher{
		watcher:  w,
		dir:      dir,
		name:     name,
		reload:   reload,
		debounce: legendDebounce,
		logger:   logger,
	}, nil
}

// Run delivers reloads until ctx ends, then closes the watcher. Bursts of
// events inside the debounce window collapse into one reload.
func (lw *legendWatcher) Run(ctx context.Context) {
	defer lw.watcher.Close()

	timer := time.NewTimer(lw.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-lw.watcher.Events:
			if !ok {
				return
			}
			if !lw.relevant(event) {
				continue
			}
			timer.Reset(lw.debounce)
		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return
			}
			lw.logger.Warn("legend watcher error", logging.Error(err))
		case <-timer.C:
			if err := lw.reload(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.WarnWithContext(lw.logger, "legend reload failed", "legend_reload_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check "+filepath.Join(lw.dir, lw.name)+" is valid JSON"),
					logging.String(logging.FieldImpact, "previous legend stays in effect"),
				)
				continue
			}
			lw.logger.Info("name legend reloaded", logging.String("path", filepath.Join(lw.dir, lw.name)))
		}
	}
}

func (lw *legendWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != lw.name {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
