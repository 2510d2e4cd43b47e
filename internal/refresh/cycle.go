package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shiftsync/internal/logging"
	"shiftsync/internal/reconcile"
	"shiftsync/internal/retry"
	"shiftsync/internal/services"
	"shiftsync/internal/shift"
	"shiftsync/internal/source"
)

func (r *Runner) runCycle(ctx context.Context, trigger string) (Status, error) {
	r.cycle.Lock()
	defer r.cycle.Unlock()

	status := Status{
		CycleID:   uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.now(),
	}
	ctx = services.WithTrigger(services.WithCycleID(ctx, status.CycleID), trigger)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("refresh cycle started",
		logging.Int("sites", len(r.sites)),
		logging.String(logging.FieldEventType, "cycle_started"),
	)

	err := r.execute(ctx, &status)
	status.FinishedAt = r.now()
	if err != nil {
		status.Err = err.Error()
		r.setLast(status)
		r.fail(ctx, status, err)
		return status, err
	}
	r.setLast(status)
	logger.Info("refresh cycle completed",
		logging.Int("accepted", status.Accepted),
		logging.Int("rejected", status.Rejected),
		logging.Int("changes", status.Changes),
		logging.Int("delivered", status.Delivered),
		logging.Int("attempts", status.Attempts),
		logging.Duration("duration", status.Duration()),
		logging.String(logging.FieldEventType, "cycle_completed"),
	)
	return status, nil
}

func (r *Runner) execute(ctx context.Context, status *Status) error {
	logger := logging.WithContext(ctx, r.logger)

	records, attempts, err := r.collect(ctx)
	status.Attempts = attempts
	if err != nil {
		return fmt.Errorf("collect roster: %w", err)
	}
	status.Records = len(records)

	unlock, err := r.lockCommit(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	changes, err := r.reconciler.Compare(ctx, records)
	if err != nil {
		return fmt.Errorf("compare roster: %w", err)
	}

	result, err := r.reconciler.Update(ctx, records)
	status.Accepted = result.Accepted
	status.Rejected = result.Rejected
	status.Duplicates = result.Duplicates
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	if r.autoDedupe {
		status.DuplicatesRemoved = r.repairDuplicates(ctx)
	}

	SortChanges(changes)
	status.Changes = len(changes)
	status.Delivered = r.deliver(ctx, changes)

	pending, err := r.legend.SaveUpdates(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "failed to save learned names", "legend_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "placeholders will be regenerated next cycle"),
		)
	}
	status.NewNames = pending
	return nil
}

// commitPoll is how often a waiting cycle retries the commit lock.
const commitPoll = 100 * time.Millisecond

// lockCommit takes the cross-process commit lock, waiting for any other
// process's cycle to finish.
func (r *Runner) lockCommit(ctx context.Context) (func(), error) {
	ok, err := r.commit.TryLockContext(ctx, commitPoll)
	if err != nil {
		return nil, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire cycle lock: %w", ctx.Err())
	}
	return func() {
		if err := r.commit.Unlock(); err != nil {
			r.logger.Warn("failed to release cycle lock", logging.Error(err))
		}
	}, nil
}

// collect runs the collector under the retry policy and returns how many
// attempts were made.
func (r *Runner) collect(ctx context.Context) ([]shift.Record, int, error) {
	logger := logging.WithContext(ctx, r.logger)
	policy := r.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logging.WarnWithContext(logger, "roster collection failed; retrying", "collect_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
	}
	attempts := 0
	records, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) ([]shift.Record, error) {
		attempts = attempt
		records, _, err := r.collector.Collect(ctx, r.sites)
		return records, err
	})
	return records, attempts, err
}

func (r *Runner) repairDuplicates(ctx context.Context) int {
	logger := logging.WithContext(ctx, r.logger)
	count, err := r.reconciler.CountDuplicates(ctx)
	if err != nil {
		logger.Warn("failed to count duplicate rows", logging.Error(err))
		return 0
	}
	if count == 0 {
		return 0
	}
	removed, err := r.reconciler.RemoveDuplicates(ctx)
	if err != nil {
		logger.Warn("failed to remove duplicate rows", logging.Error(err), logging.Int("duplicates", count))
		return 0
	}
	return removed
}

// deliver sends changes and marks the delivered prefix alerted. Delivery
// problems never fail the cycle: undelivered changes resurface next cycle.
func (r *Runner) deliver(ctx context.Context, changes []shift.Change) int {
	if len(changes) == 0 {
		return 0
	}
	logger := logging.WithContext(ctx, r.logger)
	delivered, err := r.notifier.NotifyChanges(ctx, changes)
	if err != nil {
		logging.WarnWithContext(logger, "change notification failed", "notify_failed",
			logging.Error(err),
			logging.Int("changes", len(changes)),
			logging.Int("delivered", len(delivered)),
			logging.String(logging.FieldImpact, "undelivered changes will be retried next cycle"),
		)
	}
	if len(delivered) == 0 {
		return 0
	}
	if err := r.reconciler.MarkAlerted(ctx, delivered); err != nil {
		logging.WarnWithContext(logger, "failed to mark changes alerted", "mark_alerted_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "changes may be announced again"),
		)
	}
	return len(delivered)
}

func (r *Runner) fail(ctx context.Context, status Status, err error) {
	logger := logging.WithContext(ctx, r.logger)
	logging.ErrorWithContext(logger, "refresh cycle failed", "cycle_failed",
		logging.Error(err),
		logging.Int("attempts", status.Attempts),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "previous snapshot remains authoritative"),
		logging.Alert("refresh_failed"),
	)
	if errors.Is(err, context.Canceled) {
		return
	}
	if nerr := r.notifier.NotifyCycleFailed(ctx, err, status.Attempts); nerr != nil {
		logger.Warn("failed to send cycle failure notification", logging.Error(nerr))
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, source.ErrSessionRejected):
		return "refresh the roster session cookie"
	case errors.Is(err, source.ErrEmptyResult):
		return "roster pages contained no shifts; check the session and site paths"
	case errors.Is(err, reconcile.ErrEmptySnapshot):
		return "every record failed validation; check the parser vocabulary"
	case errors.Is(err, services.ErrStorage):
		return "check the data directory and database health"
	default:
		return "see error for details"
	}
}
