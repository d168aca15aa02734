package logsink

import (
	"context"

	"go.uber.org/zap"

	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

// ActivityLogger escribe la actividad de tareas en el log estructurado.
// Se usa cuando no hay ClickHouse configurado.
type ActivityLogger struct {
	log *zap.Logger
}

func NewActivityLogger(log *zap.Logger) *ActivityLogger {
	return &ActivityLogger{log: log.Named("task_activity")}
}

func (l *ActivityLogger) LogBatch(_ context.Context, activities []taskDomain.TaskActivity) error {
	for _, a := range activities {
		l.log.Info("task activity",
			zap.String("task_id", a.TaskID.String()),
			zap.String("owner_id", a.OwnerID.String()),
			zap.String("event_type", a.EventType),
			zap.String("status", string(a.Status)),
			zap.Float64("allocated_hours", a.AllocatedHours),
			zap.Float64("time_spent", a.TimeSpent),
			zap.Time("event_time", a.EventTime),
		)
	}
	return nil
}

var _ taskDomain.TaskActivityLog = (*ActivityLogger)(nil)
