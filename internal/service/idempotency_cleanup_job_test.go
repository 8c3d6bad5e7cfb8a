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

type mockIdempotencyCleanupRepo struct {
	mock.Mock
}

func (m *mockIdempotencyCleanupRepo) AcquireOrGet(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	args := m.Called(ctx, idempotencyKey, methodKey, requestHash, ttl, ownerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdempotencyRecord), args.Error(1)
}

func (m *mockIdempotencyCleanupRepo) Get(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey) (*domain.IdempotencyRecord, error) {
	args := m.Called(ctx, idempotencyKey, methodKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdempotencyRecord), args.Error(1)
}

func (m *mockIdempotencyCleanupRepo) MarkCompleted(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, responseJSON []byte) error {
	args := m.Called(ctx, idempotencyKey, methodKey, ownerID, responseJSON)
	return args.Error(0)
}

func (m *mockIdempotencyCleanupRepo) MarkFailed(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, errorMessage string) error {
	args := m.Called(ctx, idempotencyKey, methodKey, ownerID, errorMessage)
	return args.Error(0)
}

func (m *mockIdempotencyCleanupRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewIdempotencyCleanupJob_RejectsInvalidSchedule(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockIdempotencyCleanupRepo)

	_, err := NewIdempotencyCleanupJob(repo, logger, "not a cron expression")
	require.Error(t, err)
}

func TestNewIdempotencyCleanupJob_AcceptsEveryShorthand(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockIdempotencyCleanupRepo)

	job, err := NewIdempotencyCleanupJob(repo, logger, "@every 10m")
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestIdempotencyCleanupJob_RunOnce_Success(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockIdempotencyCleanupRepo)
	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(3), nil).Once()

	job, err := NewIdempotencyCleanupJob(repo, logger, "@every 10m")
	require.NoError(t, err)

	require.NoError(t, job.RunOnce(context.Background()))
	repo.AssertExpectations(t)
}

func TestIdempotencyCleanupJob_RunOnce_Error(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockIdempotencyCleanupRepo)
	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("db unavailable")).Once()

	job, err := NewIdempotencyCleanupJob(repo, logger, "@every 10m")
	require.NoError(t, err)

	err = job.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete expired idempotency records")
}

func TestIdempotencyCleanupJob_StartRunsImmediateSweepThenStops(t *testing.T) {
	logger := observability.NewLogger("dev", "test-service")
	repo := new(mockIdempotencyCleanupRepo)
	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil)

	job, err := NewIdempotencyCleanupJob(repo, logger, "@every 1h")
	require.NoError(t, err)

	job.Start(context.Background())
	job.Stop()

	repo.AssertCalled(t, "DeleteExpired", mock.Anything, mock.Anything)
}
