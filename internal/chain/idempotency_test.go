package chain_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/riftlabs/interlock/internal/chain"
	"github.com/riftlabs/interlock/internal/domain"
)

// hashOf mirrors the stage's internal hashArgs so tests can construct
// records whose RequestHash matches (or deliberately mismatches) a given
// args value without reaching into unexported chain internals.
func hashOf(args any) string {
	encoded, _ := json.Marshal(args)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

type mockIdempotencyRepository struct {
	mock.Mock
}

func (m *mockIdempotencyRepository) AcquireOrGet(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, requestHash string, ttl time.Duration, ownerID string, now time.Time) (*domain.IdempotencyRecord, error) {
	args := m.Called(ctx, idempotencyKey, methodKey, requestHash, ttl, ownerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdempotencyRecord), args.Error(1)
}

func (m *mockIdempotencyRepository) Get(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey) (*domain.IdempotencyRecord, error) {
	args := m.Called(ctx, idempotencyKey, methodKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdempotencyRecord), args.Error(1)
}

func (m *mockIdempotencyRepository) MarkCompleted(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, responseJSON []byte) error {
	args := m.Called(ctx, idempotencyKey, methodKey, ownerID, responseJSON)
	return args.Error(0)
}

func (m *mockIdempotencyRepository) MarkFailed(ctx context.Context, idempotencyKey string, methodKey domain.MethodKey, ownerID string, errorMessage string) error {
	args := m.Called(ctx, idempotencyKey, methodKey, ownerID, errorMessage)
	return args.Error(0)
}

func (m *mockIdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func idempotentSpec() chain.OperationSpec {
	spec := testSpec()
	spec.Idempotency = &chain.IdempotencySpec{RequireKey: true, ConflictOnDifferentRequest: true, RejectInFlight: true, TTLSeconds: 300}
	return spec
}

func TestIdempotencyStage_MissingKeyFailsWhenRequired(t *testing.T) {
	repo := new(mockIdempotencyRepository)
	stage := chain.NewIdempotencyStage(repo, nil, testMetrics)
	handler := stage.Wrap(idempotentSpec(), func(ctx context.Context, args any) (any, error) {
		t.Fatal("should not reach inner handler")
		return nil, nil
	})

	_, err := handler(context.Background(), "args")
	assert.ErrorIs(t, err, domain.ErrMissingIdempotencyKey)
}

func TestIdempotencyStage_ClaimsAndMarksCompleted(t *testing.T) {
	repo := new(mockIdempotencyRepository)
	methodKey := idempotentSpec().MethodKey

	claimed := &domain.IdempotencyRecord{Status: domain.IdempotencyPending, LockedBy: "corr-1", RequestHash: hashOf("args")}
	repo.On("AcquireOrGet", mock.Anything, "key-1", methodKey, mock.Anything, mock.Anything, "corr-1", mock.Anything).
		Return(claimed, nil).Once()
	repo.On("MarkCompleted", mock.Anything, "key-1", methodKey, "corr-1", mock.Anything).Return(nil).Once()

	stage := chain.NewIdempotencyStage(repo, nil, testMetrics)
	handler := stage.Wrap(idempotentSpec(), func(ctx context.Context, args any) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	ctx := chain.WithCorrelationID(context.Background(), "corr-1")
	ctx = chain.WithIdempotencyKey(ctx, "key-1")

	result, err := handler(ctx, "args")
	require.NoError(t, err)
	assert.NotNil(t, result)
	repo.AssertExpectations(t)
}

func TestIdempotencyStage_ReplaysCompletedRecord(t *testing.T) {
	repo := new(mockIdempotencyRepository)
	methodKey := idempotentSpec().MethodKey

	completed := &domain.IdempotencyRecord{
		Status:       domain.IdempotencyCompleted,
		RequestHash:  hashOf("args"),
		ResponseJSON: []byte(`{"status":"ok"}`),
	}
	repo.On("AcquireOrGet", mock.Anything, "key-2", methodKey, mock.Anything, mock.Anything, "corr-2", mock.Anything).
		Return(completed, nil).Once()

	stage := chain.NewIdempotencyStage(repo, nil, testMetrics)
	handler := stage.Wrap(idempotentSpec(), func(ctx context.Context, args any) (any, error) {
		t.Fatal("should not invoke inner handler on replay")
		return nil, nil
	})

	ctx := chain.WithCorrelationID(context.Background(), "corr-2")
	ctx = chain.WithIdempotencyKey(ctx, "key-2")

	result, err := handler(ctx, "args")
	require.NoError(t, err)
	raw, ok := result.(json.RawMessage)
	require.True(t, ok, "expected replayed result to be json.RawMessage, got %T", result)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestIdempotencyStage_PreviousFailedYieldsConflict(t *testing.T) {
	repo := new(mockIdempotencyRepository)
	methodKey := idempotentSpec().MethodKey

	failed := &domain.IdempotencyRecord{Status: domain.IdempotencyFailed, RequestHash: hashOf("args")}
	repo.On("AcquireOrGet", mock.Anything, "key-3", methodKey, mock.Anything, mock.Anything, "corr-3", mock.Anything).
		Return(failed, nil).Once()

	stage := chain.NewIdempotencyStage(repo, nil, testMetrics)
	handler := stage.Wrap(idempotentSpec(), func(ctx context.Context, args any) (any, error) {
		t.Fatal("should not invoke inner handler")
		return nil, nil
	})

	ctx := chain.WithCorrelationID(context.Background(), "corr-3")
	ctx = chain.WithIdempotencyKey(ctx, "key-3")

	_, err := handler(ctx, "args")
	assert.ErrorIs(t, err, domain.ErrIdempotencyPreviousFailed)
}

func TestIdempotencyStage_PayloadConflict(t *testing.T) {
	repo := new(mockIdempotencyRepository)
	methodKey := idempotentSpec().MethodKey

	existing := &domain.IdempotencyRecord{Status: domain.IdempotencyPending, LockedBy: "other-owner", RequestHash: "different-hash"}
	repo.On("AcquireOrGet", mock.Anything, "key-4", methodKey, mock.Anything, mock.Anything, "corr-4", mock.Anything).
		Return(existing, nil).Once()

	stage := chain.NewIdempotencyStage(repo, nil, testMetrics)
	handler := stage.Wrap(idempotentSpec(), func(ctx context.Context, args any) (any, error) {
		t.Fatal("should not invoke inner handler on conflict")
		return nil, nil
	})

	ctx := chain.WithCorrelationID(context.Background(), "corr-4")
	ctx = chain.WithIdempotencyKey(ctx, "key-4")

	_, err := handler(ctx, "args")
	assert.ErrorIs(t, err, domain.ErrIdempotencyPayloadConflict)
}

func TestIdempotencyStage_MarksFailedOnInnerError(t *testing.T) {
	repo := new(mockIdempotencyRepository)
	methodKey := idempotentSpec().MethodKey

	claimed := &domain.IdempotencyRecord{Status: domain.IdempotencyPending, LockedBy: "corr-5", RequestHash: hashOf("args")}
	repo.On("AcquireOrGet", mock.Anything, "key-5", methodKey, mock.Anything, mock.Anything, "corr-5", mock.Anything).
		Return(claimed, nil).Once()
	repo.On("MarkFailed", mock.Anything, "key-5", methodKey, "corr-5", "boom").Return(nil).Once()

	stage := chain.NewIdempotencyStage(repo, nil, testMetrics)
	handler := stage.Wrap(idempotentSpec(), func(ctx context.Context, args any) (any, error) {
		return nil, errors.New("boom")
	})

	ctx := chain.WithCorrelationID(context.Background(), "corr-5")
	ctx = chain.WithIdempotencyKey(ctx, "key-5")

	_, err := handler(ctx, "args")
	assert.EqualError(t, err, "boom")
	repo.AssertExpectations(t)
}
