package utils

import (
	"context"
	"time"
)

// Retry ejecuta fn hasta 'attempts' veces, esperando 'delay' entre intentos.
// Si shouldRetry no es nil y devuelve false para un error, se corta en ese momento.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, shouldRetry ...func(error) bool) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if len(shouldRetry) > 0 && shouldRetry[0] != nil && !shouldRetry[0](err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
