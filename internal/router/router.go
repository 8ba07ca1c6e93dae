package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/fastygo/tasksync/api/handler"
	"github.com/fastygo/tasksync/internal/middleware"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, auth middleware.Middleware) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	v1 := r.Group("/api/v1")

	// Auth routes
	v1.POST("/auth/register", handlers.Auth.Register)
	v1.POST("/auth/login", handlers.Auth.Login)
	v1.POST("/auth/refresh", auth(handlers.Auth.Refresh))
	v1.POST("/auth/logout", auth(handlers.Auth.Logout))

	// Protected routes
	v1.GET("/profile", auth(handlers.Profile.GetProfile))
	v1.PUT("/profile", auth(handlers.Profile.UpdateProfile))

	v1.GET("/tasks", auth(handlers.Task.GetTasks))
	v1.POST("/tasks", auth(handlers.Task.CreateTask))
	v1.GET("/tasks/stream", auth(handlers.Task.Stream))
	v1.GET("/tasks/{id}", auth(handlers.Task.GetTask))
	v1.PUT("/tasks/{id}", auth(handlers.Task.UpdateTask))
	v1.DELETE("/tasks/{id}", auth(handlers.Task.DeleteTask))
	v1.POST("/tasks/{id}/toggle", auth(handlers.Task.ToggleTask))

	return r
}
