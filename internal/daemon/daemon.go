package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"shiftsync/internal/config"
	"shiftsync/internal/display"
	"shiftsync/internal/export"
	"shiftsync/internal/logging"
	"shiftsync/internal/preflight"
	"shiftsync/internal/reconcile"
	"shiftsync/internal/refresh"
	"shiftsync/internal/services"
	"shiftsync/internal/store"
)

// Reloader re-reads the name legend from storage.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Deps are the long-lived components the daemon schedules.
type Deps struct {
	Store      store.Store
	Runner     *refresh.Runner
	Reconciler *reconcile.Reconciler
	Names      Reloader
	Display    *display.Refresher
	Logger     *slog.Logger
}

// Daemon coordinates scheduled refreshes and maintenance and enforces
// single-instance execution.
type Daemon struct {
	deps Deps
	conf *config.Config
	loc  *time.Location

	lockPath string
	lock     *flock.Flock

	sched     *cron.Cron
	refreshID cron.EntryID
	backupID  cron.EntryID
	watcher   *legendWatcher

	logger  *slog.Logger
	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	LockPath    string
	LastRefresh *refresh.Status
	Store       store.Stats
	NextRefresh time.Time
	NextBackup  time.Time
	Targets     []string
}

// MaintenanceResult summarises one maintenance pass.
type MaintenanceResult struct {
	BackupPath   string
	BackupRows   int
	AlertsPruned int
	LogsRemoved  int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Runner == nil || deps.Reconciler == nil {
		return nil, errors.New("daemon requires config, store, runner, and reconciler")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "timezone", "Invalid display timezone", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := cfg.LockPath()
	return &Daemon{
		deps:     deps,
		conf:     cfg,
		loc:      loc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start acquires the daemon lock and launches the scheduled jobs.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shiftsync daemon instance is already running")
	}

	for _, failed := range preflight.Failed(preflight.RunAll(ctx, d.conf)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "refreshes may fail until resolved"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sched := cron.New(
		cron.WithParser(config.ScheduleParser()),
		cron.WithLocation(d.loc),
		cron.WithLogger(cronLogger{logger: d.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: d.logger})),
	)
	refreshID, err := sched.AddFunc(d.conf.Refresh.Schedule, func() {
		d.refresh(runCtx, refresh.TriggerSchedule)
	})
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return services.Wrap(services.ErrConfiguration, "daemon", "schedule refresh", "Invalid refresh schedule", err)
	}
	var backupID cron.EntryID
	if d.conf.Refresh.BackupSchedule != "" {
		backupID, err = sched.AddFunc(d.conf.Refresh.BackupSchedule, func() {
			if _, err := d.RunMaintenance(runCtx); err != nil && runCtx.Err() == nil {
				d.logger.Warn("maintenance failed", logging.Error(err))
			}
		})
		if err != nil {
			cancel()
			_ = d.lock.Unlock()
			return services.Wrap(services.ErrConfiguration, "daemon", "schedule backup", "Invalid backup schedule", err)
		}
	}

	if d.conf.Storage.Driver == config.DriverFile && d.deps.Names != nil {
		watcher, err := newLegendWatcher(d.conf.Paths.DataDir, store.LegendFile, d.reloadLegend, d.logger)
		if err != nil {
			d.logger.Warn("legend watcher unavailable", logging.Error(err))
		} else {
			d.watcher = watcher
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				watcher.Run(runCtx)
			}()
		}
	}

	if d.deps.Display != nil {
		for _, path := range d.conf.Display.Targets {
			d.deps.Display.Register(display.FileTarget{Path: path})
		}
		if len(d.deps.Display.Targets()) > 0 {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.deps.Display.Run(runCtx, d.conf.DisplayInterval())
			}()
		}
	}

	sched.Start()
	d.sched = sched
	d.refreshID = refreshID
	d.backupID = backupID
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.refresh(runCtx, refresh.TriggerStartup)
	}()

	d.logger.Info("shiftsync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("refresh_schedule", d.conf.Refresh.Schedule),
		logging.String("backup_schedule", d.conf.Refresh.BackupSchedule),
	)
	return nil
}

// Stop halts scheduled work, waits for running jobs, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.sched != nil {
		<-d.sched.Stop().Done()
		d.sched = nil
	}
	d.wg.Wait()
	d.watcher = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shiftsync daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.deps.Store != nil {
		return d.deps.Store.Close()
	}
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Running reports whether the daemon holds the lock and is scheduling work.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status reports runtime information.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:  d.running.Load(),
		LockPath: d.lockPath,
	}
	if last, ok := d.deps.Runner.Last(); ok {
		status.LastRefresh = &last
	}
	d.mu.Lock()
	if d.sched != nil {
		status.NextRefresh = d.sched.Entry(d.refreshID).Next
		if d.backupID != 0 {
			status.NextBackup = d.sched.Entry(d.backupID).Next
		}
	}
	d.mu.Unlock()
	if d.deps.Display != nil {
		status.Targets = d.deps.Display.Targets()
	}
	stats, err := d.deps.Store.Stats(ctx)
	if err != nil {
		return status, fmt.Errorf("store stats: %w", err)
	}
	status.Store = stats
	return status, nil
}

// RefreshNow runs a manual cycle, joining one already in flight.
func (d *Daemon) RefreshNow(ctx context.Context) (refresh.Status, error) {
	return d.deps.Runner.Run(ctx, refresh.TriggerManual)
}

func (d *Daemon) refresh(ctx context.Context, trigger string) {
	status, err := d.deps.Runner.Run(ctx, trigger)
	if err != nil {
		// The runner already logged and alerted.
		return
	}
	if d.deps.Display != nil && status.OK() && len(d.deps.Display.Targets()) > 0 {
		if _, _, err := d.deps.Display.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("display refresh after cycle failed", logging.Error(err))
		}
	}
}

func (d *Daemon) reloadLegend(ctx context.Context) error {
	return d.deps.Runner.Exclusive(func() error {
		return d.deps.Names.Reload(ctx)
	})
}

// RunMaintenance writes a CSV backup of the snapshot, prunes old alert
// markers, and removes expired log files.
func (d *Daemon) RunMaintenance(ctx context.Context) (MaintenanceResult, error) {
	var result MaintenanceResult
	now := d.now().In(d.loc)

	path, rows, err := export.Backup(ctx, d.deps.Store, d.conf.BackupDir(), now)
	if err != nil {
		return result, err
	}
	result.BackupPath = path
	result.BackupRows = rows
	d.logger.Info("snapshot backup written",
		logging.String("path", path),
		logging.Int("rows", rows),
	)

	pruned, err := d.deps.Reconciler.PruneAlertedChanges(ctx, d.conf.Refresh.AlertRetentionDays)
	if err != nil {
		return result, err
	}
	result.AlertsPruned = pruned

	result.LogsRemoved = logging.CleanupOldLogs(d.logger, d.conf.Logging.RetentionDays,
		logging.RetentionTarget{Dir: d.conf.Paths.LogDir, Pattern: "*.log", Exclude: []string{"shiftsync.log"}},
		logging.RetentionTarget{Dir: d.conf.BackupDir(), Pattern: "shifts-*.csv"},
	)
	return result, nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("scheduler: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("scheduler: "+msg, append(keysAndValues, logging.Error(err))...)
}
