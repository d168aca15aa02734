package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	// --- Importaciones del dominio y compartidas ---
	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedSQLite "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/sqlite"
	sharedQuery "github.com/davicafu/pomotasks/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/pomotasks/internal/shared/infra/utils"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
)

const taskColumns = "id, owner_id, title, status, allocated_hours, time_spent, created_at, updated_at"

// Columnas que se pueden usar en filtros y orden; cualquier otra se rechaza.
var filterableColumns = map[string]bool{"owner_id": true, "title": true, "status": true}
var sortableColumns = map[string]bool{"created_at": true, "updated_at": true, "title": true}

// TaskRepoSQLite implementa taskDomain.TaskRepository para SQLite.
type TaskRepoSQLite struct {
	db *sql.DB
}

func NewTaskRepoSQLite(db *sql.DB) *TaskRepoSQLite {
	return &TaskRepoSQLite{db: db}
}

// ------------------ CRUD + Outbox ------------------

// Create inserta la tarea y su evento en una transacción.
func (r *TaskRepoSQLite) Create(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.OwnerID.String(), t.Title, string(t.Status), t.AllocatedHours, t.TimeSpent, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

// Update sobrescribe los campos mutables si la fila pertenece al propietario de t.
func (r *TaskRepoSQLite) Update(ctx context.Context, t *taskDomain.Task, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET title=?, status=?, allocated_hours=?, time_spent=?, updated_at=?
		 WHERE id=? AND owner_id=?`,
		t.Title, string(t.Status), t.AllocatedHours, t.TimeSpent, t.UpdatedAt, t.ID.String(), t.OwnerID.String(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return taskDomain.ErrTaskNotFound
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteByID elimina la tarea y registra el evento en una transacción.
func (r *TaskRepoSQLite) DeleteByID(ctx context.Context, id uuid.UUID, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id.String())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return taskDomain.ErrTaskNotFound
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, evt); err != nil {
		return err
	}
	return tx.Commit()
}

// ------------------ Lectura ------------------

func (r *TaskRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*taskDomain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String())

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, taskDomain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return t, nil
}

// applyCriteria traduce los criterios neutrales a SQL para SQLite.
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
	for _, c := range conds {
		if !filterableColumns[c.Field] {
			return "", nil, fmt.Errorf("unsupported filter field %q", c.Field)
		}
		switch c.Op {
		case sharedDomain.OpEq:
			clauses = append(clauses, c.Field+" = ?")
			args = append(args, c.Value)
		case sharedDomain.OpIContains:
			lower := sharedSQLite.LowerFunc
			clauses = append(clauses, lower+"("+c.Field+") LIKE "+lower+`(?) ESCAPE '\'`)
			args = append(args, "%"+sharedUtils.EscapeLike(fmt.Sprint(c.Value))+"%")
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// ListByCriteria recupera las tareas que cumplen los criterios con el orden indicado.
func (r *TaskRepoSQLite) ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, sort sharedQuery.Sort) ([]*taskDomain.Task, error) {
	whereSQL, args, err := applyCriteria(criteria)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	field := sort.Field
	if !sortableColumns[field] {
		field = "created_at"
	}
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
func (r *TaskRepoSQLite) Statistics(ctx context.Context, ownerID uuid.UUID) (taskDomain.TaskStatistics, error) {
	var s taskDomain.TaskStatistics
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(time_spent), 0.0),
		       COUNT(*),
		       COUNT(CASE WHEN status = 'completed' THEN 1 END),
		       COUNT(CASE WHEN status = 'in-progress' THEN 1 END),
		       COUNT(CASE WHEN status = 'todo' THEN 1 END)
		FROM tasks WHERE owner_id = ?`, ownerID.String(),
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
	var idStr, ownerStr, status string
	if err := row.Scan(&idStr, &ownerStr, &t.Title, &status, &t.AllocatedHours, &t.TimeSpent, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	if t.OwnerID, err = uuid.Parse(ownerStr); err != nil {
		return nil, fmt.Errorf("invalid owner UUID in DB: %w", err)
	}
	t.Status = taskDomain.TaskStatus(status)
	return &t, nil
}

// ------------------ Inicialización de DB ------------------

// InitSQLiteTaskSchema crea la tabla tasks y la tabla outbox si no existen.
func InitSQLiteTaskSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            owner_id TEXT NOT NULL,
            title TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('todo', 'in-progress', 'completed')),
            allocated_hours REAL NOT NULL CHECK (allocated_hours >= 0),
            time_spent REAL NOT NULL DEFAULT 0 CHECK (time_spent >= 0),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`)
	if err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks (owner_id, created_at)`); err != nil {
		return fmt.Errorf("failed to create tasks index: %w", err)
	}

	return sharedSQLite.InitOutboxSchema(ctx, db)
}

// Verificación estática.
var _ taskDomain.TaskRepository = (*TaskRepoSQLite)(nil)
