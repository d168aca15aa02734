package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/davicafu/pomotasks/internal/mocks"
	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	"github.com/davicafu/pomotasks/internal/user/domain"
)

func newService(t *testing.T) (*UserService, *mocks.InMemoryUserRepo, *mocks.DummyCache) {
	t.Helper()
	repo := mocks.NewInMemoryUserRepo()
	cache := mocks.NewDummyCache()
	svc, err := NewUserService(repo, cache, AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		CacheTTL:   time.Minute,
		BcryptCost: bcrypt.MinCost,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc, repo, cache
}

func TestNewUserService_RequiresSecret(t *testing.T) {
	_, err := NewUserService(mocks.NewInMemoryUserRepo(), nil, AuthConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	svc, repo, cache := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))

	require.Len(t, repo.Outbox, 1)
	assert.Equal(t, domain.UserCreated, repo.Outbox[0].EventType)
	assert.Equal(t, user.ID.String(), repo.Outbox[0].AggregateID)
	assert.True(t, cache.Has(domain.CacheKeyByID(user.ID)))

	_, err = svc.Register(ctx, "alice", "another password")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestRegister_Validation(t *testing.T) {
	svc, repo, _ := newService(t)

	_, err := svc.Register(context.Background(), "al", "short")
	require.Error(t, err)

	var verr *sharedDomain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")
	assert.Empty(t, repo.Users)
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, "bob", "password123")
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, "bob", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, "bob", p.Username)

	_, err = svc.Authenticate(ctx, "bob", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestIssueAndResolveToken(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, "carol", "password123")
	require.NoError(t, err)

	tok, err := svc.IssueToken(ctx, "carol", "password123")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, tok.ExpiresIn)
	assert.Len(t, strings.Split(tok.AccessToken, "."), 3)

	p, err := svc.ResolveToken(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, "carol", p.Username)

	_, err = svc.IssueToken(ctx, "carol", "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestResolveToken_Rejections(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "dave", "password123")
	require.NoError(t, err)
	tok, err := svc.IssueToken(ctx, "dave", "password123")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ResolveToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = svc.ResolveToken(ctx, forged)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()
		_, err := svc.ResolveToken(ctx, tok.AccessToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("user gone", func(t *testing.T) {
		other, _, _ := newService(t)
		// Mismo secreto, pero el usuario no existe en este repositorio.
		_, err := other.ResolveToken(ctx, tok.AccessToken)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	assert.NotEmpty(t, repo.Users)
}

func TestGetUser_CacheAside(t *testing.T) {
	svc, repo, cache := newService(t)
	ctx := context.Background()

	user := domain.NewUser("erin", "hash")
	repo.Users[user.ID] = user

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin", got.Username)
	assert.True(t, cache.Has(domain.CacheKeyByID(user.ID)))

	delete(repo.Users, user.ID)
	got, err = svc.GetUser(ctx, user.ID)
	require.NoError(t, err, "el segundo acceso sale de la caché")
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGetUser_BrokenCacheFallsBackToRepo(t *testing.T) {
	svc, repo, cache := newService(t)
	cache.Broken = true

	user := domain.NewUser("frank", "hash")
	repo.Users[user.ID] = user

	got, err := svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}
