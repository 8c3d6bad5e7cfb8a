package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
)

// IdempotencyCleanupJob periodically purges expired idempotency records
// (§4.3.2) on a robfig/cron schedule, rather than a fixed ticker, so
// operators can phrase the sweep in cron syntax ("0 */4 * * *") instead of
// a raw Go duration.
type IdempotencyCleanupJob struct {
	repo      domain.IdempotencyRepository
	logger    *observability.Logger
	scheduler *cron.Cron
	entryID   cron.EntryID
}

// NewIdempotencyCleanupJob creates the job. schedule is a standard 5-field
// cron expression or a "@every <duration>" shorthand.
func NewIdempotencyCleanupJob(repo domain.IdempotencyRepository, logger *observability.Logger, schedule string) (*IdempotencyCleanupJob, error) {
	job := &IdempotencyCleanupJob{
		repo:      repo,
		logger:    logger,
		scheduler: cron.New(),
	}

	entryID, err := job.scheduler.AddFunc(schedule, job.runSweep)
	if err != nil {
		return nil, fmt.Errorf("invalid idempotency cleanup schedule %q: %w", schedule, err)
	}
	job.entryID = entryID

	return job, nil
}

// Start begins the cron scheduler and runs one sweep immediately so a
// freshly deployed instance doesn't wait a full period before its first
// cleanup.
func (j *IdempotencyCleanupJob) Start(ctx context.Context) {
	j.logger.WithField("next_run", j.scheduler.Entry(j.entryID).Next.String()).Info("starting idempotency cleanup job")
	j.runSweepWithContext(ctx)
	j.scheduler.Start()
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (j *IdempotencyCleanupJob) Stop() {
	j.logger.Info("stopping idempotency cleanup job")
	stopCtx := j.scheduler.Stop()
	<-stopCtx.Done()
	j.logger.Info("idempotency cleanup job stopped")
}

// RunOnce executes a single sweep synchronously (useful for testing and for
// an operator-triggered manual run).
func (j *IdempotencyCleanupJob) RunOnce(ctx context.Context) error {
	return j.sweep(ctx)
}

// runSweep is the cron callback; cron.Cron has no native context
// propagation, so each tick gets its own bounded background context.
func (j *IdempotencyCleanupJob) runSweep() {
	j.runSweepWithContext(context.Background())
}

func (j *IdempotencyCleanupJob) runSweepWithContext(ctx context.Context) {
	if err := j.sweep(ctx); err != nil {
		j.logger.WithError(err).Error("idempotency cleanup sweep failed")
	}
}

func (j *IdempotencyCleanupJob) sweep(ctx context.Context) error {
	startTime := time.Now()
	j.logger.Debug("running idempotency cleanup sweep")

	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	deleted, err := j.repo.DeleteExpired(sweepCtx, startTime)
	if err != nil {
		return fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"deleted_rows": deleted,
		"duration_ms":  time.Since(startTime).Milliseconds(),
	}).Info("idempotency cleanup sweep completed")

	return nil
}
