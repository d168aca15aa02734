package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedSQLite "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/sqlite"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sharedSQLite.OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSQLiteTaskSchema(context.Background(), db))
	return db
}

func newTask(t *testing.T, owner uuid.UUID, title string, createdAt time.Time) *taskDomain.Task {
	t.Helper()
	task, err := taskDomain.NewTask(owner, title, 2, nil)
	require.NoError(t, err)
	task.CreatedAt = createdAt
	task.UpdatedAt = createdAt
	return task
}

func evtFor(task *taskDomain.Task, eventType string) sharedDomain.OutboxEvent {
	return sharedDomain.NewOutboxEvent(taskDomain.TaskAggregateType, task.ID.String(), eventType, task)
}

func countOutbox(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n))
	return n
}

func TestTaskRepoSQLite_CRUD(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepoSQLite(db)
	ctx := context.Background()
	owner := uuid.New()

	task := newTask(t, owner, "Write report", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, task, evtFor(task, taskDomain.TaskCreated)))

	got, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, "Write report", got.Title)
	assert.Equal(t, taskDomain.TaskTodo, got.Status)
	assert.Equal(t, 2.0, got.AllocatedHours)
	assert.True(t, task.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, got.AddTime(5400))
	require.NoError(t, repo.Update(ctx, got, evtFor(got, taskDomain.TaskUpdated)))

	got, err = repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.TimeSpent)

	require.NoError(t, repo.DeleteByID(ctx, task.ID, evtFor(got, taskDomain.TaskDeleted)))
	_, err = repo.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)

	assert.Equal(t, 3, countOutbox(t, db), "cada mutación deja su evento")
}

func TestTaskRepoSQLite_UpdateChecksOwner(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepoSQLite(db)
	ctx := context.Background()

	task := newTask(t, uuid.New(), "Mine", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, task, evtFor(task, taskDomain.TaskCreated)))

	forged := *task
	forged.OwnerID = uuid.New()
	forged.Title = "Stolen"
	err := repo.Update(ctx, &forged, evtFor(&forged, taskDomain.TaskUpdated))
	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)
	assert.Equal(t, 1, countOutbox(t, db), "la transacción fallida no deja evento")
}

func TestTaskRepoSQLite_DeleteMissing(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepoSQLite(db)

	task := newTask(t, uuid.New(), "Ghost", time.Now().UTC())
	err := repo.DeleteByID(context.Background(), task.ID, evtFor(task, taskDomain.TaskDeleted))
	assert.ErrorIs(t, err, taskDomain.ErrTaskNotFound)
	assert.Equal(t, 0, countOutbox(t, db))
}

func TestTaskRepoSQLite_ListByCriteria(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepoSQLite(db)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	base := time.Now().UTC()

	for i, title := range []string{"Write REPORT", "50% off_sale", "report review", "Groceries"} {
		task := newTask(t, owner, title, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(ctx, task, evtFor(task, taskDomain.TaskCreated)))
	}
	foreign := newTask(t, other, "Other report", base)
	require.NoError(t, repo.Create(ctx, foreign, evtFor(foreign, taskDomain.TaskCreated)))

	search := func(q string) []string {
		criteria := sharedDomain.And(taskDomain.OwnerCriteria{OwnerID: owner}, taskDomain.TitleContainsCriteria{Query: q})
		tasks, err := repo.ListByCriteria(ctx, criteria, sharedQuery.NewestFirst)
		require.NoError(t, err)
		titles := make([]string, 0, len(tasks))
		for _, task := range tasks {
			titles = append(titles, task.Title)
		}
		return titles
	}

	assert.Equal(t, []string{"Groceries", "report review", "50% off_sale", "Write REPORT"}, search(""))
	assert.Equal(t, []string{"report review", "Write REPORT"}, search("RePoRt"))
	assert.Equal(t, []string{"50% off_sale"}, search("%"))
	assert.Equal(t, []string{"50% off_sale"}, search("_"))
	assert.Empty(t, search("nothing"))
}

func TestTaskRepoSQLite_SearchFoldsUnicode(t *testing.T) {
	repo := NewTaskRepoSQLite(setupDB(t))
	ctx := context.Background()
	owner := uuid.New()
	base := time.Now().UTC()

	for i, title := range []string{"Émile report", "ÜBER straße", "plain"} {
		task := newTask(t, owner, title, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(ctx, task, evtFor(task, taskDomain.TaskCreated)))
	}

	search := func(q string) []string {
		criteria := sharedDomain.And(taskDomain.OwnerCriteria{OwnerID: owner}, taskDomain.TitleContainsCriteria{Query: q})
		tasks, err := repo.ListByCriteria(ctx, criteria, sharedQuery.NewestFirst)
		require.NoError(t, err)
		titles := make([]string, 0, len(tasks))
		for _, task := range tasks {
			titles = append(titles, task.Title)
		}
		return titles
	}

	assert.Equal(t, []string{"Émile report"}, search("émile"))
	assert.Equal(t, []string{"Émile report"}, search("ÉMILE"))
	assert.Equal(t, []string{"ÜBER straße"}, search("über"))
	assert.Equal(t, []string{"ÜBER straße"}, search("STRAßE"))
	assert.Empty(t, search("émilè"))
}

func TestTaskRepoSQLite_RejectsUnknownFilterField(t *testing.T) {
	repo := NewTaskRepoSQLite(setupDB(t))

	criteria := sharedDomain.And(badCriteria{})
	_, err := repo.ListByCriteria(context.Background(), criteria, sharedQuery.NewestFirst)
	assert.Error(t, err)
}

type badCriteria struct{}

func (badCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "1=1; DROP TABLE tasks; --", Op: sharedDomain.OpEq, Value: 1}}
}

func TestTaskRepoSQLite_Statistics(t *testing.T) {
	db := setupDB(t)
	repo := NewTaskRepoSQLite(db)
	ctx := context.Background()
	owner := uuid.New()

	stats, err := repo.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, taskDomain.TaskStatistics{}, stats)

	specs := []struct {
		status taskDomain.TaskStatus
		spent  float64
	}{
		{taskDomain.TaskCompleted, 1.5},
		{taskDomain.TaskInProgress, 0.3333},
		{taskDomain.TaskTodo, 0},
		{taskDomain.TaskTodo, 0.0001},
	}
	for _, s := range specs {
		task := newTask(t, owner, "t", time.Now().UTC())
		task.Status = s.status
		task.TimeSpent = s.spent
		require.NoError(t, repo.Create(ctx, task, evtFor(task, taskDomain.TaskCreated)))
	}
	foreign := newTask(t, uuid.New(), "x", time.Now().UTC())
	foreign.TimeSpent = 10
	require.NoError(t, repo.Create(ctx, foreign, evtFor(foreign, taskDomain.TaskCreated)))

	stats, err = repo.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, taskDomain.TaskStatistics{
		TotalHoursSpent: 1.83,
		TotalTasks:      4,
		CompletedTasks:  1,
		InProgressTasks: 1,
		TodoTasks:       2,
	}, stats)
}
