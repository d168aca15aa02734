package identity

import (
	"context"

	"github.com/google/uuid"
)

// Principal es el usuario autenticado que origina la petición.
type Principal struct {
	UserID   uuid.UUID
	Username string
}

type principalKey struct{}

// WithPrincipal guarda el principal en el contexto de la petición.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext recupera el principal; ok es false si la petición no pasó por el middleware de auth.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
