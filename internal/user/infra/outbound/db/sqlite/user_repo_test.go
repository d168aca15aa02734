package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedSQLite "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/pomotasks/internal/user/domain"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sharedSQLite.OpenSQLite(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSQLiteUserSchema(context.Background(), db))
	return db
}

func createdEvent(u *domain.User) sharedDomain.OutboxEvent {
	return sharedDomain.NewOutboxEvent(domain.UserAggregateType, u.ID.String(), domain.UserCreated, u)
}

func TestUserRepoSQLite_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepoSQLite(db)
	ctx := context.Background()

	u := domain.NewUser("alice", "$2a$04$hash")
	require.NoError(t, repo.Create(ctx, u, createdEvent(u)))

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "$2a$04$hash", byID.PasswordHash)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = repo.GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	var pending int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox WHERE event_type = ?`, domain.UserCreated).Scan(&pending))
	assert.Equal(t, 1, pending)
}

func TestUserRepoSQLite_DuplicateUsername(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepoSQLite(db)
	ctx := context.Background()

	first := domain.NewUser("bob", "h1")
	require.NoError(t, repo.Create(ctx, first, createdEvent(first)))

	second := domain.NewUser("bob", "h2")
	err := repo.Create(ctx, second, createdEvent(second))
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n))
	assert.Equal(t, 1, n, "el evento del duplicado no se guarda")
}
