package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lucemdev/fundtrace/internal/handlers"
)

type RouterConfig struct {
	ServiceName   string
	EchoHandler   *handlers.EchoHandler
	SignupHandler *handlers.SignupHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.GET("/healthz", handlers.HealthCheck)
	router.Any("/test", cfg.EchoHandler.Echo)

	hooks := router.Group("/hooks")
	{
		hooks.POST("/signup", cfg.SignupHandler.UserCreated)
	}

	return router
}
