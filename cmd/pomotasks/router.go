package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	config "github.com/davicafu/pomotasks/internal/config"
	"github.com/davicafu/pomotasks/internal/shared/infra/http/middleware"
	taskApp "github.com/davicafu/pomotasks/internal/task/application"
	taskHttp "github.com/davicafu/pomotasks/internal/task/infra/inbound/http"
	userApp "github.com/davicafu/pomotasks/internal/user/application"
	userHttp "github.com/davicafu/pomotasks/internal/user/infra/inbound/http"
)

// newRouter monta /health, las rutas de autenticación y las de tareas bajo /api.
func newRouter(cfg *config.Config, users *userApp.UserService, tasks *taskApp.TaskService, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTelEnabled {
		router.Use(otelgin.Middleware(cfg.OTelServiceName))
	}
	router.Use(middleware.RequestLogger(log), middleware.CORS(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	requireAuth := userHttp.RequireAuth(users, log)
	userHttp.RegisterAuthRoutes(api, userHttp.NewUserHandler(users, log), requireAuth)
	taskHttp.RegisterTaskRoutes(api.Group("", requireAuth), taskHttp.NewTaskHandler(tasks, log))

	return router
}
