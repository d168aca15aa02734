package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedCache "github.com/davicafu/pomotasks/internal/shared/infra/platform/cache"
	"github.com/davicafu/pomotasks/internal/shared/infra/platform/identity"
	sharedUtils "github.com/davicafu/pomotasks/internal/shared/infra/utils"
	"github.com/davicafu/pomotasks/internal/user/domain"
)

// AuthConfig agrupa los parámetros de credenciales y tokens.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	CacheTTL   time.Duration
	BcryptCost int // 0 usa bcrypt.DefaultCost
}

// Token es un access token emitido para un usuario.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserService define los casos de uso de identidad: registro, login y tokens.
type UserService struct {
	repo      domain.UserRepository
	cache     sharedCache.Cache
	cacheTTL  int
	secret    []byte
	tokenTTL  time.Duration
	cost      int
	dummyHash []byte
	now       func() time.Time
	log       *zap.Logger
}

// NewUserService constructor
func NewUserService(repo domain.UserRepository, cache sharedCache.Cache, cfg AuthConfig, log *zap.Logger) (*UserService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	// Hash de referencia para igualar el tiempo de respuesta con usuarios inexistentes.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("pomotasks-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &UserService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  int(cfg.CacheTTL.Seconds()),
		secret:    []byte(cfg.JWTSecret),
		tokenTTL:  tokenTTL,
		cost:      cost,
		dummyHash: dummyHash,
		now:       time.Now,
		log:       log,
	}, nil
}

// Register valida las credenciales, guarda el usuario y su evento user.created.
func (s *UserService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if err := domain.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.NewUser(username, string(hash))
	evt := sharedDomain.NewOutboxEvent(domain.UserAggregateType, user.ID.String(), domain.UserCreated, user)

	if err := s.repo.Create(ctx, user, evt); err != nil {
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			s.log.Error("Failed to create user", zap.String("username", username), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("User registered", zap.String("user_id", user.ID.String()))
	sharedCache.SetBestEffort(ctx, s.cache, domain.CacheKeyByID(user.ID), user, s.cacheTTL, s.log)
	return user, nil
}

// Authenticate comprueba usuario y password. Cualquier fallo de credenciales es ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (identity.Principal, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return identity.Principal{}, domain.ErrInvalidCredentials
		}
		return identity.Principal{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return identity.Principal{}, domain.ErrInvalidCredentials
	}

	return identity.Principal{UserID: user.ID, Username: user.Username}, nil
}

// IssueToken autentica y firma un JWT HS256 cuyo subject es el id del usuario.
func (s *UserService) IssueToken(ctx context.Context, username, password string) (Token, error) {
	p, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}

	now := s.now().UTC()
	claims := tokenClaims{
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresIn: s.tokenTTL}, nil
}

// ResolveToken valida el JWT y devuelve el principal si el usuario sigue existiendo.
func (s *UserService) ResolveToken(ctx context.Context, token string) (identity.Principal, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		s.log.Debug("Rejected token", zap.Error(err))
		return identity.Principal{}, domain.ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return identity.Principal{}, domain.ErrInvalidToken
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return identity.Principal{}, domain.ErrInvalidToken
		}
		return identity.Principal{}, err
	}
	return identity.Principal{UserID: user.ID, Username: user.Username}, nil
}

// GetUser obtiene un usuario (primero intenta desde cache).
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	key := domain.CacheKeyByID(id)

	// 1. Intentar cache
	if s.cache != nil {
		var u domain.User
		ok, err := s.cache.Get(ctx, key, &u)
		if err != nil {
			s.log.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return &u, nil
		}
	}

	// 2. Ir al repo con reintentos
	var user *domain.User
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var err error
		user, err = s.repo.GetByID(ctx, id)
		return err
	}, func(err error) bool {
		return !errors.Is(err, domain.ErrUserNotFound) && ctx.Err() == nil
	})
	if err != nil {
		return nil, err
	}

	// 3. Poblar cache
	sharedCache.SetBestEffort(ctx, s.cache, key, user, s.cacheTTL, s.log)
	return user, nil
}
