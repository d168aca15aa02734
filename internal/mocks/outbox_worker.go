package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

// MockOutboxRepository simula el repositorio de outbox.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher simula un EventBus.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, event interface{}) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

// MockTaskActivityLog simula el registro de actividad.
type MockTaskActivityLog struct {
	mock.Mock
}

func (m *MockTaskActivityLog) LogBatch(ctx context.Context, activities []taskDomain.TaskActivity) error {
	args := m.Called(ctx, activities)
	return args.Error(0)
}

var _ taskDomain.TaskActivityLog = (*MockTaskActivityLog)(nil)
