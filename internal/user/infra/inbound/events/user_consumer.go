package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/pomotasks/internal/shared/domain/events"
	sharedCache "github.com/davicafu/pomotasks/internal/shared/infra/platform/cache"
	sharedUtils "github.com/davicafu/pomotasks/internal/shared/infra/utils"
	userDomain "github.com/davicafu/pomotasks/internal/user/domain"
)

// UserConsumer precarga en caché los usuarios recién registrados, de modo que la
// primera validación de su token no tenga que ir a la base de datos.
type UserConsumer struct {
	cache    sharedCache.Cache
	cacheTTL int
	log      *zap.Logger
}

func NewUserConsumer(cache sharedCache.Cache, cacheTTL time.Duration, logger *zap.Logger) *UserConsumer {
	return &UserConsumer{
		cache:    cache,
		cacheTTL: int(cacheTTL.Seconds()),
		log:      logger,
	}
}

func (c *UserConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case userDomain.UserCreated:
		sharedUtils.UnmarshalAndHandle[userDomain.User](c.log, base.Type, base.Data, func(u userDomain.User) {
			sharedCache.SetBestEffort(ctx, c.cache, userDomain.CacheKeyByID(u.ID), &u, c.cacheTTL, c.log)
			c.log.Info("User created event processed", zap.String("user_id", u.ID.String()))
		})

	default:
		c.log.Warn("Unknown user event type", zap.String("type", base.Type), zap.String("key", key))
	}
}
