package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/interlock/internal/domain"
	"github.com/riftlabs/interlock/internal/observability"
)

type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Create(ctx context.Context, row *domain.AuditRow) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *mockAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewAuditRetentionJob(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, 24*time.Hour)

	assert.NotNil(t, job)
	assert.Equal(t, 24*time.Hour, job.cleanupInterval)
	assert.NotNil(t, job.stopChan)
	assert.NotNil(t, job.doneChan)
}

func TestAuditRetentionJob_RunOnce_Success(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, time.Hour)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(5), nil).Once()

	err := job.RunOnce(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAuditRetentionJob_RunOnce_Error(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, time.Hour)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), errors.New("database connection failed")).Once()

	err := job.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete expired audit rows")
	repo.AssertExpectations(t)
}

func TestAuditRetentionJob_RunOnce_PassesCorrectCutoff(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	retention := 48 * time.Hour
	job := NewAuditRetentionJob(repo, logger, retention, time.Hour)

	before := time.Now().Add(-retention)
	repo.On("DeleteOlderThan", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return !cutoff.After(time.Now().Add(-retention).Add(time.Second)) && !cutoff.Before(before.Add(-time.Second))
	})).Return(int64(0), nil).Once()

	err := job.RunOnce(context.Background())
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAuditRetentionJob_Start_ImmediateCleanup(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, 100*time.Millisecond)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)

	job.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	job.Stop()

	repo.AssertCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything)
}

func TestAuditRetentionJob_Start_PeriodicCleanup(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, 50*time.Millisecond)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)

	job.Start(context.Background())
	time.Sleep(300 * time.Millisecond)
	job.Stop()

	assert.GreaterOrEqual(t, len(repo.Calls), 1, "expected at least 1 cleanup call")
}

func TestAuditRetentionJob_Stop_GracefulShutdown(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, time.Hour)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	job.Start(context.Background())

	done := make(chan struct{})
	go func() {
		job.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete in time")
	}
}

func TestAuditRetentionJob_Start_ContextCancellation(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, time.Hour)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx)
	cancel()
	time.Sleep(100 * time.Millisecond)
}

func TestAuditRetentionJob_Start_CleanupErrorDoesNotStopJob(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockAuditRepository)

	job := NewAuditRetentionJob(repo, logger, 30*24*time.Hour, 50*time.Millisecond)
	repo.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), errors.New("cleanup error"))

	job.Start(context.Background())
	time.Sleep(300 * time.Millisecond)
	job.Stop()

	assert.GreaterOrEqual(t, len(repo.Calls), 1, "job should attempt cleanup at least once despite errors")
}
