package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/pomotasks/internal/shared/infra/platform/identity"
	"github.com/davicafu/pomotasks/internal/user/domain"
	"github.com/davicafu/pomotasks/pkg/utils"
)

// PrincipalKey es la clave del principal en el gin.Context.
const PrincipalKey = "principal"

// Authenticator resuelve credenciales Basic o Bearer a un principal.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (identity.Principal, error)
	ResolveToken(ctx context.Context, token string) (identity.Principal, error)
}

// RequireAuth exige `Authorization: Basic …` o `Authorization: Bearer …`.
func RequireAuth(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, value, _ := strings.Cut(header, " ")

		var (
			p   identity.Principal
			err error
		)
		switch {
		case strings.EqualFold(scheme, "Basic"):
			username, password, ok := c.Request.BasicAuth()
			if !ok {
				unauthorized(c, "invalid basic header")
				return
			}
			p, err = auth.Authenticate(c.Request.Context(), username, password)
		case strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(value) != "":
			p, err = auth.ResolveToken(c.Request.Context(), strings.TrimSpace(value))
		default:
			unauthorized(c, "authentication credentials were not provided")
			return
		}

		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrInvalidToken) {
				unauthorized(c, err.Error())
				return
			}
			log.Error("Authentication backend failed", zap.Error(err))
			utils.AbortWithError(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(PrincipalKey, p)
		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Basic realm="api"`)
	utils.AbortWithError(c, http.StatusUnauthorized, message)
}
