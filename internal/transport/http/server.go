package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"course-rag/internal/bootstrap"
	rabbitmqClient "course-rag/internal/platform/rabbitmq"
	redisClient "course-rag/internal/platform/redis"
	"course-rag/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	checks := map[string]handler.DependencyCheck{
		"store": app.Store.Ping,
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx, app.Redis)
		}
	}
	if app.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			return rabbitmqClient.Ping(app.MQConn)
		}
	}
	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	// A nil *IngestPublisher must not become a non-nil interface.
	var publisher handler.IngestPublisher
	if app.IngestPublisher != nil {
		publisher = app.IngestPublisher
	}
	ragHandler := handler.NewRAGHandler(app.RAG, app.Ingest, publisher)

	api := router.Group("/api")
	api.POST("/query", ragHandler.Query)
	api.GET("/courses", ragHandler.Courses)
	api.POST("/courses", ragHandler.AddCourse)
	api.DELETE("/session/:id", ragHandler.ClearSession)

	return router
}
