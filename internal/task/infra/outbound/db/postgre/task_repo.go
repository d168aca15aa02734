package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// --- Importaciones del dominio y compartidas ---
	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedPostgres "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/postgres"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/pomotasks/internal/shared/infra/utils"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
)

const taskColumns = "id, owner_id, title, status, allocated_hours, time_spent, created_at, updated_at"

var filterableColumns = map[string]bool{"owner_id": true, "title": true, "status": true}
var sortableColumns = map[string]bool{"created_at": true, "updated_at": true, "title": true}

// TaskRepoPostgres implementa la interfaz TaskRepository para PostgreSQL.
type TaskRepoPostgres struct {
	db *sql.DB
}

// NewTaskRepoPostgres es el constructor del repositorio.
func NewTaskRepoPostgres(db *sql.DB) *TaskRepoPostgres {
	return &TaskRepoPostgres{db: db}
}

// ------------------ CRUD + Outbox ------------------

// Create inserta una tarea y un evento en una transacción.
func (r *TaskRepoPostgres) Create(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.OwnerID, t.Title, string(t.Status), t.AllocatedHours, t.TimeSpent, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// Update actualiza una tarea del propietario y crea un evento en una transacción.
func (r *TaskRepoPostgres) Update(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET title=$1, status=$2, allocated_hours=$3, time_spent=$4, updated_at=$5
		 WHERE id=$6 AND owner_id=$7`,
		t.Title, string(t.Status), t.AllocatedHours, t.TimeSpent, t.UpdatedAt, t.ID, t.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return taskDomain.ErrTaskNotFound
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}

	return tx.Commit()
}

// DeleteByID elimina una tarea y crea un evento en una transacción.
func (r *TaskRepoPostgres) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return taskDomain.ErrTaskNotFound
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, evt); err != nil {
		return fmt.Errorf("failed to insert outbox: %w", err)
	}

	return tx.Commit()
}

// ------------------ Lectura ------------------

// GetByID recupera una tarea de la base de datos por su ID.
func (r *TaskRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, taskDomain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}

	return t, nil
}

// applyCriteria traduce criterios a SQL para Postgres ($1, $2...).
func applyCriteria(criteria sharedDomain.Criteria) (string, []interface{}, error) {
	if criteria == nil {
		return "", nil, nil
	}
	conds := criteria.ToConditions()
	if len(conds) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []interface{}
	for i, c := range conds {
		if !filterableColumns[c.Field] {
			return "", nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}
		switch c.Op {
		case sharedDomain.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", c.Field, i+1))
			args = append(args, c.Value)
		case sharedDomain.OpIContains:
			clauses = append(clauses, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, c.Field, i+1))
			args = append(args, "%"+sharedUtils.EscapeLike(fmt.Sprint(c.Value))+"%")
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// ListByCriteria recupera una lista de tareas aplicando filtros y ordenamiento.
func (r *TaskRepoPostgres) ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, sort sharedQuery.Sort) ([]*taskDomain.Task, error) {
	whereSQL, args, err := applyCriteria(criteria)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	field := sharedUtils.Ternary(sortableColumns[sort.Field], sort.Field, "created_at")
	query += fmt.Sprintf(" ORDER BY %s %s, id", field, sharedUtils.Ternary(sort.Desc, "DESC", "ASC"))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*taskDomain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// Statistics agrega en la base de datos las tareas del propietario.
func (r *TaskRepoPostgres) Statistics(ctx context.Context, ownerID uuid.UUID) (taskDomain.TaskStatistics, error) {
	var s taskDomain.TaskStatistics
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(time_spent), 0)::float8,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'in-progress'),
		       COUNT(*) FILTER (WHERE status = 'todo')
		FROM tasks WHERE owner_id = $1`, ownerID,
	).Scan(&s.TotalHoursSpent, &s.TotalTasks, &s.CompletedTasks, &s.InProgressTasks, &s.TodoTasks)
	if err != nil {
		return taskDomain.TaskStatistics{}, fmt.Errorf("task statistics: %w", err)
	}
	return s.Normalize(), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*taskDomain.Task, error) {
	var t taskDomain.Task
	var status string
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &status, &t.AllocatedHours, &t.TimeSpent, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = taskDomain.TaskStatus(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// ------------------ Inicialización del Esquema ------------------

// InitPostgresTaskSchema crea la tabla 'tasks' y 'outbox' si no existen.
func InitPostgresTaskSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
    CREATE TABLE IF NOT EXISTS tasks (
        id UUID PRIMARY KEY,
        owner_id UUID NOT NULL,
        title VARCHAR(200) NOT NULL,
        status TEXT NOT NULL CHECK (status IN ('todo', 'in-progress', 'completed')),
        allocated_hours DOUBLE PRECISION NOT NULL CHECK (allocated_hours >= 0),
        time_spent DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (time_spent >= 0),
        created_at TIMESTAMP WITH TIME ZONE NOT NULL,
        updated_at TIMESTAMP WITH TIME ZONE NOT NULL
    )`)
	if err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks (owner_id, created_at DESC)`); err != nil {
		return fmt.Errorf("failed to create tasks index: %w", err)
	}

	return sharedPostgres.InitOutboxSchema(ctx, db)
}

var _ taskDomain.TaskRepository = (*TaskRepoPostgres)(nil)
