package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	// --- Importaciones del dominio y compartidas ---
	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedCache "github.com/davicafu/pomotasks/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/pomotasks/internal/shared/infra/utils"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

const (
	retryAttempts = 3
	retryDelay    = 100 * time.Millisecond
)

// CreateTaskInput son los datos que acepta la creación de una tarea.
type CreateTaskInput struct {
	Title          string
	AllocatedHours float64
	Status         *taskDomain.TaskStatus
}

// TaskService define los casos de uso relacionados con Task.
// Todas las operaciones se limitan a las tareas del propietario que llama:
// una tarea ajena se trata igual que una inexistente (ErrTaskNotFound).
type TaskService struct {
	repo     taskDomain.TaskRepository
	cache    sharedCache.Cache
	cacheTTL int
	log      *zap.Logger
}

// NewTaskService es el constructor para el servicio de tareas.
func NewTaskService(repo taskDomain.TaskRepository, cache sharedCache.Cache, cacheTTL time.Duration, log *zap.Logger) *TaskService {
	return &TaskService{
		repo:     repo,
		cache:    cache,
		cacheTTL: int(cacheTTL.Seconds()),
		log:      log,
	}
}

// ListTasks devuelve las tareas del propietario, la más reciente primero.
func (s *TaskService) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]*taskDomain.Task, error) {
	return s.SearchTasks(ctx, ownerID, "")
}

// SearchTasks filtra por título (contiene, sin distinguir mayúsculas). Una query vacía devuelve todo.
func (s *TaskService) SearchTasks(ctx context.Context, ownerID uuid.UUID, query string) ([]*taskDomain.Task, error) {
	criteria := sharedDomain.And(
		taskDomain.OwnerCriteria{OwnerID: ownerID},
		taskDomain.TitleContainsCriteria{Query: query},
	)

	tasks, err := s.repo.ListByCriteria(ctx, criteria, sharedQuery.NewestFirst)
	if err != nil {
		s.log.Error("Failed to list tasks", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return nil, err
	}
	if tasks == nil {
		tasks = []*taskDomain.Task{}
	}
	return tasks, nil
}

// CreateTask valida y crea una tarea del propietario, con su evento de outbox.
func (s *TaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, in CreateTaskInput) (*taskDomain.Task, error) {
	task, err := taskDomain.NewTask(ownerID, in.Title, in.AllocatedHours, in.Status)
	if err != nil {
		return nil, err
	}

	evt := sharedDomain.NewOutboxEvent(taskDomain.TaskAggregateType, task.ID.String(), taskDomain.TaskCreated, task)
	if err := s.repo.Create(ctx, task, evt); err != nil {
		s.log.Error("Failed to create task", zap.Error(err))
		return nil, err
	}

	s.log.Info("Task created", zap.String("task_id", task.ID.String()), zap.String("owner_id", ownerID.String()))
	sharedCache.SetBestEffort(ctx, s.cache, taskDomain.TaskCacheKeyByID(task.ID), task, s.cacheTTL, s.log)
	return task, nil
}

// GetTask obtiene una tarea usando el patrón cache-aside con reintentos.
func (s *TaskService) GetTask(ctx context.Context, ownerID, id uuid.UUID) (*taskDomain.Task, error) {
	// 1. Intentar obtener de la caché
	if s.cache != nil {
		var t taskDomain.Task
		if hit, err := s.cache.Get(ctx, taskDomain.TaskCacheKeyByID(id), &t); err != nil {
			s.log.Warn("Cache read failed", zap.String("task_id", id.String()), zap.Error(err))
		} else if hit {
			if !t.IsOwnedBy(ownerID) {
				return nil, taskDomain.ErrTaskNotFound
			}
			return &t, nil
		}
	}

	// 2. Si es 'miss', ir al repositorio
	task, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	// 3. Poblar la caché para la próxima vez
	sharedCache.SetBestEffort(ctx, s.cache, taskDomain.TaskCacheKeyByID(task.ID), task, s.cacheTTL, s.log)
	return task, nil
}

// UpdateTask aplica un patch parcial. Si algún campo no valida no se persiste nada.
// Un patch vacío devuelve la tarea actual sin escribir ni emitir evento.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id uuid.UUID, patch taskDomain.TaskPatch) (*taskDomain.Task, error) {
	if patch.IsEmpty() {
		return s.GetTask(ctx, ownerID, id)
	}
	return s.mutate(ctx, ownerID, id, func(t *taskDomain.Task) error {
		return t.Apply(patch)
	})
}

// UpdateTime suma 'seconds' (convertidos a horas) al tiempo dedicado.
func (s *TaskService) UpdateTime(ctx context.Context, ownerID, id uuid.UUID, seconds float64) (*taskDomain.Task, error) {
	return s.mutate(ctx, ownerID, id, func(t *taskDomain.Task) error {
		return t.AddTime(seconds)
	})
}

// ChangeStatus cambia el estado; un estado fuera del conjunto devuelve ValidationError.
func (s *TaskService) ChangeStatus(ctx context.Context, ownerID, id uuid.UUID, status taskDomain.TaskStatus) (*taskDomain.Task, error) {
	return s.mutate(ctx, ownerID, id, func(t *taskDomain.Task) error {
		return t.ChangeStatus(status)
	})
}

// DeleteTask elimina la tarea, crea un evento y limpia la caché.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id uuid.UUID) error {
	task, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	evt := sharedDomain.NewOutboxEvent(taskDomain.TaskAggregateType, id.String(), taskDomain.TaskDeleted, task)
	if err := s.repo.DeleteByID(ctx, id, evt); err != nil {
		if !errors.Is(err, taskDomain.ErrTaskNotFound) {
			s.log.Error("Failed to delete task", zap.String("task_id", id.String()), zap.Error(err))
		}
		return err
	}

	s.log.Info("Task deleted", zap.String("task_id", id.String()))
	sharedCache.DeleteBestEffort(ctx, s.cache, taskDomain.TaskCacheKeyByID(id), s.log)
	return nil
}

// Statistics agrega las tareas del propietario.
func (s *TaskService) Statistics(ctx context.Context, ownerID uuid.UUID) (taskDomain.TaskStatistics, error) {
	stats, err := s.repo.Statistics(ctx, ownerID)
	if err != nil {
		s.log.Error("Failed to compute statistics", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return taskDomain.TaskStatistics{}, err
	}
	return stats.Normalize(), nil
}

// mutate carga la tarea desde el repositorio (nunca desde caché), aplica el cambio de dominio
// y la persiste con un evento task.updated.
func (s *TaskService) mutate(ctx context.Context, ownerID, id uuid.UUID, change func(*taskDomain.Task) error) (*taskDomain.Task, error) {
	task, err := s.loadOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if err := change(task); err != nil {
		return nil, err
	}

	evt := sharedDomain.NewOutboxEvent(taskDomain.TaskAggregateType, task.ID.String(), taskDomain.TaskUpdated, task)
	if err := s.repo.Update(ctx, task, evt); err != nil {
		if !errors.Is(err, taskDomain.ErrTaskNotFound) {
			s.log.Error("Failed to update task", zap.String("task_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	sharedCache.SetBestEffort(ctx, s.cache, taskDomain.TaskCacheKeyByID(task.ID), task, s.cacheTTL, s.log)
	return task, nil
}

// loadOwned lee del repositorio con reintentos y oculta las tareas de otros propietarios.
func (s *TaskService) loadOwned(ctx context.Context, ownerID, id uuid.UUID) (*taskDomain.Task, error) {
	var task *taskDomain.Task
	err := sharedUtils.Retry(ctx, retryAttempts, retryDelay, func() error {
		var errRetry error
		task, errRetry = s.repo.GetByID(ctx, id)
		return errRetry
	}, isTransient)

	if err != nil {
		if errors.Is(err, taskDomain.ErrTaskNotFound) {
			s.log.Debug("Task not found", zap.String("task_id", id.String()))
		} else {
			s.log.Error("Failed to fetch task", zap.String("task_id", id.String()), zap.Error(err))
		}
		return nil, err
	}

	if !task.IsOwnedBy(ownerID) {
		s.log.Debug("Task owned by another user", zap.String("task_id", id.String()))
		return nil, taskDomain.ErrTaskNotFound
	}
	return task, nil
}

func isTransient(err error) bool {
	return !errors.Is(err, taskDomain.ErrTaskNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
