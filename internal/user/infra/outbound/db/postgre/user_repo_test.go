package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	"github.com/davicafu/pomotasks/internal/user/domain"
)

// Test de integración: requiere una base de datos real en DATABASE_URL.
func TestUserRepoPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, InitPostgresUserSchema(ctx, db))
	repo := NewUserRepoPostgres(db)

	u := domain.NewUser("it-"+uuid.NewString()[:8], "hash")
	evt := sharedDomain.NewOutboxEvent(domain.UserAggregateType, u.ID.String(), domain.UserCreated, u)
	require.NoError(t, repo.Create(ctx, u, evt))
	t.Cleanup(func() { db.Exec(`DELETE FROM users WHERE id=$1`, u.ID) })

	got, err := repo.GetByUsername(ctx, u.Username)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	dup := domain.NewUser(u.Username, "hash")
	err = repo.Create(ctx, dup, sharedDomain.NewOutboxEvent(domain.UserAggregateType, dup.ID.String(), domain.UserCreated, dup))
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}
