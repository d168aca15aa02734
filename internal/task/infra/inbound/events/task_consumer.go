package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	// --- Importaciones compartidas ---
	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	sharedUtils "github.com/davicafu/pomotasks/internal/shared/infra/utils"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

// TaskActivityConsumer convierte los eventos del topic de tareas en filas de actividad.
type TaskActivityConsumer struct {
	activity taskDomain.TaskActivityLog
	timeout  time.Duration
	log      *zap.Logger
}

// NewTaskActivityConsumer es el constructor.
func NewTaskActivityConsumer(activity taskDomain.TaskActivityLog, logger *zap.Logger) *TaskActivityConsumer {
	return &TaskActivityConsumer{
		activity: activity,
		timeout:  2 * time.Second,
		log:      logger,
	}
}

// HandleMessage es el punto de entrada para un nuevo mensaje/evento.
func (c *TaskActivityConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event for task", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case taskDomain.TaskCreated, taskDomain.TaskUpdated, taskDomain.TaskDeleted:
		sharedUtils.UnmarshalAndHandle[taskDomain.Task](c.log, base.Type, base.Data, func(t taskDomain.Task) {
			c.record(ctx, taskDomain.NewTaskActivity(base.Type, t, eventTime(base)))
		})

	default:
		c.log.Warn("Unknown task event type", zap.String("type", base.Type), zap.String("key", key))
	}
}

// record escribe la actividad con un contexto limitado; los fallos se registran y el evento se descarta.
func (c *TaskActivityConsumer) record(ctx context.Context, a taskDomain.TaskActivity) {
	ctxLog, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.activity.LogBatch(ctxLog, []taskDomain.TaskActivity{a}); err != nil {
		c.log.Warn("Failed to record task activity",
			zap.String("task_id", a.TaskID.String()),
			zap.String("event_type", a.EventType),
			zap.Error(err),
		)
		return
	}

	c.log.Debug("Task activity recorded",
		zap.String("task_id", a.TaskID.String()),
		zap.String("event_type", a.EventType),
	)
}

func eventTime(evt sharedEvents.IntegrationEvent) time.Time {
	if evt.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return evt.Timestamp.UTC()
}
