package http

import "github.com/gin-gonic/gin"

// RegisterAuthRoutes monta /auth; requireAuth protege /auth/me/.
func RegisterAuthRoutes(r gin.IRouter, handler *UserHandler, requireAuth gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/register/", handler.Register)
		auth.POST("/token/", handler.Token)
		auth.GET("/me/", requireAuth, handler.Me)
	}
}
