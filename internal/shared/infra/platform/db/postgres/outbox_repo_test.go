package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
)

func setupOutboxDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	require.NoError(t, InitOutboxSchema(context.Background(), db))
	return db
}

func insertEvent(t *testing.T, db *sql.DB, evt sharedDomain.OutboxEvent) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, InsertOutboxTx(ctx, tx, evt))
	require.NoError(t, tx.Commit())
}

// pendingIDs filtra los pendientes a los ids del test: la tabla puede tener filas de otros tests.
func pendingIDs(t *testing.T, repo *OutboxRepoPostgres, ours ...uuid.UUID) []uuid.UUID {
	t.Helper()
	events, err := repo.FetchPendingOutbox(context.Background(), 10000)
	require.NoError(t, err)

	wanted := map[uuid.UUID]bool{}
	for _, id := range ours {
		wanted[id] = true
	}
	var ids []uuid.UUID
	for _, evt := range events {
		if wanted[evt.ID] {
			ids = append(ids, evt.ID)
		}
	}
	return ids
}

func TestOutboxRepoPostgres_Integration(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewOutboxRepoPostgres(db)
	ctx := context.Background()

	aggregateID := "it-" + uuid.NewString()[:8]
	first := sharedDomain.NewOutboxEvent("task", aggregateID, "task.created", map[string]string{"title": "first"})
	second := sharedDomain.NewOutboxEvent("task", aggregateID, "task.updated", map[string]string{"title": "second"})
	second.CreatedAt = first.CreatedAt.Add(time.Millisecond)
	insertEvent(t, db, first)
	insertEvent(t, db, second)

	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, pendingIDs(t, repo, first.ID, second.ID))

	events, err := repo.FetchPendingOutbox(ctx, 10000)
	require.NoError(t, err)
	for _, evt := range events {
		if evt.ID == first.ID {
			assert.JSONEq(t, `{"title":"first"}`, string(evt.Payload.(json.RawMessage)))
			assert.Equal(t, aggregateID, evt.AggregateID)
		}
	}

	require.NoError(t, repo.MarkOutboxProcessed(ctx, first.ID))
	assert.Equal(t, []uuid.UUID{second.ID}, pendingIDs(t, repo, first.ID, second.ID))
	require.NoError(t, repo.MarkOutboxProcessed(ctx, second.ID))

	assert.Error(t, repo.MarkOutboxProcessed(ctx, uuid.New()))
}

func TestInsertOutboxTx_RollsBackWithTransaction(t *testing.T) {
	db := setupOutboxDB(t)
	repo := NewOutboxRepoPostgres(db)
	ctx := context.Background()

	evt := sharedDomain.NewOutboxEvent("task", "it-rollback", "task.created", map[string]string{"title": "x"})
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, InsertOutboxTx(ctx, tx, evt))
	require.NoError(t, tx.Rollback())

	assert.Empty(t, pendingIDs(t, repo, evt.ID))
}
