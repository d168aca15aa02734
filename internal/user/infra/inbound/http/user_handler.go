package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	"github.com/davicafu/pomotasks/internal/shared/infra/platform/identity"
	"github.com/davicafu/pomotasks/internal/user/application"
	"github.com/davicafu/pomotasks/internal/user/domain"
	"github.com/davicafu/pomotasks/pkg/utils"
)

// UserHandler encapsula los endpoints HTTP de identidad
type UserHandler struct {
	service *application.UserService
	log     *zap.Logger
}

// NewUserHandler crea un nuevo UserHandler
func NewUserHandler(service *application.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{service: service, log: log}
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID.String(), Username: u.Username, CreatedAt: u.CreatedAt}
}

// ---------------- Handlers ----------------

// Register endpoint POST /auth/register/
func (h *UserHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.SendBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// Token endpoint POST /auth/token/
func (h *UserHandler) Token(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.SendBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.SendValidationError(c, missingCredentials(req))
		return
	}

	tok, err := h.service.IssueToken(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(tok.ExpiresIn.Seconds()),
	})
}

// Me endpoint GET /auth/me/
func (h *UserHandler) Me(c *gin.Context) {
	p, ok := identity.PrincipalFromContext(c.Request.Context())
	if !ok {
		utils.SendUnauthorized(c, "authentication credentials were not provided")
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), p.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

func missingCredentials(req credentialsRequest) map[string]string {
	fields := map[string]string{}
	if req.Username == "" {
		fields["username"] = "this field is required"
	}
	if req.Password == "" {
		fields["password"] = "this field is required"
	}
	return fields
}

func (h *UserHandler) handleError(c *gin.Context, err error) {
	var verr *sharedDomain.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.SendValidationError(c, verr.Fields)
	case errors.Is(err, domain.ErrUserAlreadyExists):
		utils.SendConflict(c, "a user with that username already exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		utils.SendUnauthorized(c, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		utils.SendUnauthorized(c, domain.ErrInvalidToken.Error())
	default:
		h.log.Error("Unexpected error in identity handler", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal server error")
	}
}
