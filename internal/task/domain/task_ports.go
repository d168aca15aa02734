package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTask  = errors.New("invalid task")
)

// --- Repositorio de Tasks ---

// TaskRepository persiste tareas. Las mutaciones guardan el evento de outbox en la misma transacción.
type TaskRepository interface {
	Create(ctx context.Context, t *Task, evt sharedDomain.OutboxEvent) error
	// Update sólo afecta a la fila si pertenece a t.OwnerID; si no, ErrTaskNotFound.
	Update(ctx context.Context, t *Task, evt sharedDomain.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, sort sharedQuery.Sort) ([]*Task, error)
	DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error
	// Statistics devuelve las estadísticas ya redondeadas de un propietario.
	Statistics(ctx context.Context, ownerID uuid.UUID) (TaskStatistics, error)
}

// --- Analítica ---

// TaskActivity es una fila del registro de actividad alimentado por los eventos de Task.
type TaskActivity struct {
	TaskID         uuid.UUID
	OwnerID        uuid.UUID
	EventType      string
	Status         TaskStatus
	AllocatedHours float64
	TimeSpent      float64
	EventTime      time.Time
}

// NewTaskActivity construye la fila a partir del snapshot publicado en el evento.
func NewTaskActivity(eventType string, t Task, eventTime time.Time) TaskActivity {
	return TaskActivity{
		TaskID:         t.ID,
		OwnerID:        t.OwnerID,
		EventType:      eventType,
		Status:         t.Status,
		AllocatedHours: t.AllocatedHours,
		TimeSpent:      t.TimeSpent,
		EventTime:      eventTime,
	}
}

type TaskActivityLog interface {
	LogBatch(ctx context.Context, activities []TaskActivity) error
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func TaskCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("task:id:%s", id.String())
}
