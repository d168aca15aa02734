package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

// InMemoryTaskRepo simula TaskRepository con outbox incluido.
// Guarda y devuelve copias para que los tests no compartan punteros con el servicio.
type InMemoryTaskRepo struct {
	Tasks  map[uuid.UUID]*taskDomain.Task
	Outbox []sharedDomain.OutboxEvent
	mu     sync.Mutex

	getFailures int
	getErr      error
	GetCalls    int
}

var _ taskDomain.TaskRepository = (*InMemoryTaskRepo)(nil)

func NewInMemoryTaskRepo() *InMemoryTaskRepo {
	return &InMemoryTaskRepo{
		Tasks:  make(map[uuid.UUID]*taskDomain.Task),
		Outbox: []sharedDomain.OutboxEvent{},
	}
}

// FailNextGets hace que las próximas n llamadas a GetByID devuelvan err.
func (r *InMemoryTaskRepo) FailNextGets(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getFailures = n
	r.getErr = err
}

// --- Implementación de la interfaz TaskRepository ---

func (r *InMemoryTaskRepo) Create(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.Tasks[t.ID] = &cp
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GetCalls++
	if r.getFailures > 0 {
		r.getFailures--
		return nil, r.getErr
	}
	t, ok := r.Tasks[id]
	if !ok {
		return nil, taskDomain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryTaskRepo) Update(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.Tasks[t.ID]
	if !ok || current.OwnerID != t.OwnerID {
		return taskDomain.ErrTaskNotFound
	}
	cp := *t
	r.Tasks[t.ID] = &cp
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryTaskRepo) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Tasks[id]; !ok {
		return taskDomain.ErrTaskNotFound
	}
	delete(r.Tasks, id)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryTaskRepo) ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, sorts sharedQuery.Sort) ([]*taskDomain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conds []sharedDomain.Criterion
	if criteria != nil {
		conds = criteria.ToConditions()
	}

	var list []*taskDomain.Task
	for _, task := range r.Tasks {
		if matchTaskCriterion(task, conds) {
			cp := *task
			list = append(list, &cp)
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return compareTasks(list[i], list[j], sorts.Field, sorts.Desc)
	})
	return list, nil
}

func (r *InMemoryTaskRepo) Statistics(ctx context.Context, ownerID uuid.UUID) (taskDomain.TaskStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owned []*taskDomain.Task
	for _, t := range r.Tasks {
		if t.OwnerID == ownerID {
			owned = append(owned, t)
		}
	}
	return taskDomain.ComputeStatistics(owned), nil
}

// EventTypes devuelve los tipos de evento de outbox en orden de inserción.
func (r *InMemoryTaskRepo) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.Outbox))
	for _, evt := range r.Outbox {
		types = append(types, evt.EventType)
	}
	return types
}

// --- Lógica de filtrado y ordenamiento del mock ---

func matchTaskCriterion(t *taskDomain.Task, conds []sharedDomain.Criterion) bool {
	for _, cond := range conds {
		val, _ := cond.Value.(string)

		var match bool
		switch cond.Field {
		case "owner_id":
			match = t.OwnerID.String() == val
		case "status":
			match = string(t.Status) == val
		case "title":
			if cond.Op == sharedDomain.OpIContains {
				match = strings.Contains(strings.ToLower(t.Title), strings.ToLower(val))
			} else {
				match = t.Title == val
			}
		}

		if !match {
			return false
		}
	}
	return true
}

func compareTasks(t1, t2 *taskDomain.Task, field string, desc bool) bool {
	var less, equal bool
	switch field {
	case "title":
		less, equal = t1.Title < t2.Title, t1.Title == t2.Title
	case "created_at":
		less, equal = t1.CreatedAt.Before(t2.CreatedAt), t1.CreatedAt.Equal(t2.CreatedAt)
	default:
		less, equal = t1.ID.String() < t2.ID.String(), t1.ID == t2.ID
	}
	if equal {
		return false
	}
	if desc {
		return !less
	}
	return less
}
