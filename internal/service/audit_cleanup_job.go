package service

import (
	"context"
	"fmt"
	"time"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
)

// AuditRetentionJob periodically deletes audit rows older than retention,
// keeping the audit_rows table bounded in size.
type AuditRetentionJob struct {
	auditRepo       domain.AuditRepository
	logger          *observability.Logger
	retention       time.Duration
	cleanupInterval time.Duration
	stopChan        chan struct{}
	doneChan        chan struct{}
}

// NewAuditRetentionJob creates a new audit retention job. retention is how
// far back rows are kept; cleanupInterval is how often the sweep runs.
func NewAuditRetentionJob(
	auditRepo domain.AuditRepository,
	logger *observability.Logger,
	retention time.Duration,
	cleanupInterval time.Duration,
) *AuditRetentionJob {
	return &AuditRetentionJob{
		auditRepo:       auditRepo,
		logger:          logger,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup job. Runs in a goroutine and can be
// stopped with Stop().
func (j *AuditRetentionJob) Start(ctx context.Context) {
	j.logger.WithField("interval", j.cleanupInterval.String()).Info("starting audit retention job")

	if err := j.runCleanup(ctx); err != nil {
		j.logger.WithError(err).Error("initial audit retention sweep failed")
	}

	ticker := time.NewTicker(j.cleanupInterval)

	go func() {
		defer close(j.doneChan)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := j.runCleanup(ctx); err != nil {
					j.logger.WithError(err).Error("scheduled audit retention sweep failed")
				}
			case <-j.stopChan:
				j.logger.Info("audit retention job stopped")
				return
			case <-ctx.Done():
				j.logger.Info("audit retention job context cancelled")
				return
			}
		}
	}()
}

// Stop gracefully stops the cleanup job.
func (j *AuditRetentionJob) Stop() {
	j.logger.Info("stopping audit retention job")
	close(j.stopChan)
	<-j.doneChan
	j.logger.Info("audit retention job stopped successfully")
}

func (j *AuditRetentionJob) runCleanup(ctx context.Context) error {
	startTime := time.Now()
	j.logger.Debug("running audit retention sweep")

	cleanupCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := startTime.Add(-j.retention)
	deleted, err := j.auditRepo.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired audit rows: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"deleted_rows": deleted,
		"cutoff":       cutoff.Format(time.RFC3339),
		"duration_ms":  time.Since(startTime).Milliseconds(),
	}).Info("audit retention sweep completed")

	return nil
}

// RunOnce executes a single cleanup operation (useful for testing).
func (j *AuditRetentionJob) RunOnce(ctx context.Context) error {
	return j.runCleanup(ctx)
}
