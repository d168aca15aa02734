package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// TaskActivityRepo implementa taskDomain.TaskActivityLog sobre ClickHouse.
type TaskActivityRepo struct {
	db *sql.DB
}

// OpenClickHouse abre la conexión database/sql y comprueba que responde.
func OpenClickHouse(ctx context.Context, addr, dbName string) (*sql.DB, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return conn, nil
}

// NewTaskActivityRepo es el constructor.
func NewTaskActivityRepo(db *sql.DB) *TaskActivityRepo {
	return &TaskActivityRepo{db: db}
}

// LogBatch inserta un lote de actividades. ClickHouse funciona mejor con inserciones en lotes.
func (r *TaskActivityRepo) LogBatch(ctx context.Context, activities []taskDomain.TaskActivity) error {
	if len(activities) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO tasks_activity (task_id, owner_id, event_type, status, allocated_hours, time_spent, event_time)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range activities {
		if _, err := stmt.ExecContext(ctx,
			a.TaskID,
			a.OwnerID,
			a.EventType,
			string(a.Status),
			a.AllocatedHours,
			a.TimeSpent,
			a.EventTime,
		); err != nil {
			// Si un registro falla se descarta todo el lote.
			return fmt.Errorf("failed to exec statement for task %s: %w", a.TaskID, err)
		}
	}

	return tx.Commit()
}

// InitSchema crea la tabla en ClickHouse si no existe.
// Se particiona por mes y se ordena por propietario y fecha del evento.
func (r *TaskActivityRepo) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks_activity (
			task_id         UUID,
			owner_id        UUID,
			event_type      LowCardinality(String),
			status          LowCardinality(String),
			allocated_hours Float64,
			time_spent      Float64,
			event_time      DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (owner_id, event_time)`)
	return err
}

// Verificación estática de la interfaz.
var _ taskDomain.TaskActivityLog = (*TaskActivityRepo)(nil)
