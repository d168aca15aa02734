package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pomotasks/internal/mocks"
	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

func encodeEvent(t *testing.T, eventType string, ts time.Time, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(sharedEvents.IntegrationEvent{Type: eventType, Timestamp: ts, Data: raw})
	require.NoError(t, err)
	return payload
}

func TestTaskActivityConsumer_RecordsKnownEvents(t *testing.T) {
	task, err := taskDomain.NewTask(uuid.New(), "Focus block", 2, nil)
	require.NoError(t, err)
	task.TimeSpent = 0.5
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for _, eventType := range []string{taskDomain.TaskCreated, taskDomain.TaskUpdated, taskDomain.TaskDeleted} {
		t.Run(eventType, func(t *testing.T) {
			activityLog := new(mocks.MockTaskActivityLog)
			activityLog.On("LogBatch", mock.Anything, []taskDomain.TaskActivity{{
				TaskID:         task.ID,
				OwnerID:        task.OwnerID,
				EventType:      eventType,
				Status:         taskDomain.TaskTodo,
				AllocatedHours: 2,
				TimeSpent:      0.5,
				EventTime:      ts,
			}}).Return(nil).Once()

			consumer := NewTaskActivityConsumer(activityLog, zap.NewNop())
			consumer.HandleMessage(context.Background(), task.ID.String(), encodeEvent(t, eventType, ts, task))

			activityLog.AssertExpectations(t)
		})
	}
}

func TestTaskActivityConsumer_IgnoresUnknownAndMalformed(t *testing.T) {
	activityLog := new(mocks.MockTaskActivityLog)
	consumer := NewTaskActivityConsumer(activityLog, zap.NewNop())
	ctx := context.Background()

	consumer.HandleMessage(ctx, "k", []byte("not json"))
	consumer.HandleMessage(ctx, "k", encodeEvent(t, "user.created", time.Now(), map[string]string{"id": "x"}))
	consumer.HandleMessage(ctx, "k", encodeEvent(t, taskDomain.TaskCreated, time.Now(), "not a task"))

	activityLog.AssertNotCalled(t, "LogBatch", mock.Anything, mock.Anything)
}

func TestTaskActivityConsumer_SinkFailureIsSwallowed(t *testing.T) {
	task, err := taskDomain.NewTask(uuid.New(), "x", 1, nil)
	require.NoError(t, err)

	activityLog := new(mocks.MockTaskActivityLog)
	activityLog.On("LogBatch", mock.Anything, mock.Anything).Return(errors.New("clickhouse down")).Once()

	consumer := NewTaskActivityConsumer(activityLog, zap.NewNop())
	assert.NotPanics(t, func() {
		consumer.HandleMessage(context.Background(), "", encodeEvent(t, taskDomain.TaskUpdated, time.Time{}, task))
	})
	activityLog.AssertExpectations(t)
}
