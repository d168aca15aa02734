package http

import "github.com/gin-gonic/gin"

// RegisterTaskRoutes registra las rutas HTTP del dominio de Tareas.
// El grupo recibido ya debe exigir autenticación.
func RegisterTaskRoutes(r gin.IRouter, handler *TaskHandler) {
	tasks := r.Group("/tasks")
	{
		tasks.GET("/", handler.ListTasks)
		tasks.POST("/", handler.CreateTask)
		tasks.GET("/search/", handler.SearchTasks)
		tasks.GET("/statistics/", handler.Statistics)
		tasks.GET("/:id/", handler.GetTask)
		tasks.PATCH("/:id/", handler.PatchTask)
		tasks.PUT("/:id/", handler.ReplaceTask)
		tasks.DELETE("/:id/", handler.DeleteTask)
		tasks.POST("/:id/update_time/", handler.UpdateTime)
		tasks.POST("/:id/change_status/", handler.ChangeStatus)
	}
}
