package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riftlabs/interlock/internal/domain"
)

// MockAuditRepository is a shared mock implementation of
// domain.AuditRepository, used by the chain package's audit and chain
// tests.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, row *domain.AuditRow) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
