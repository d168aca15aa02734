package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// writeTimeout acota cuánto puede retrasar la caché una petición.
const writeTimeout = 200 * time.Millisecond

// SetBestEffort actualiza la caché antes de responder. Un fallo se registra y no
// se propaga: la base de datos sigue siendo la fuente de verdad.
func SetBestEffort(ctx context.Context, c Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if c == nil {
		return
	}

	// Desacoplado de la cancelación de la petición para no dejar una entrada a medio escribir.
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := c.Set(cacheCtx, key, value, ttl); err != nil {
		log.Warn("Cache update failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// DeleteBestEffort invalida una entrada; mismo contrato que SetBestEffort.
func DeleteBestEffort(ctx context.Context, c Cache, key string, log *zap.Logger) {
	if c == nil {
		return
	}

	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := c.Delete(cacheCtx, key); err != nil {
		log.Warn("Cache deletion failed",
			zap.String("key", key),
			zap.Error(err))
	}
}
