package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/riftlabs/interlock/internal/domain"
)

// MockAuditStreamPublisher is a mock implementation of
// events.AuditStreamPublisher.
type MockAuditStreamPublisher struct {
	mock.Mock
}

func (m *MockAuditStreamPublisher) Publish(ctx context.Context, row *domain.AuditRow) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockAuditStreamPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
