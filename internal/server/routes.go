package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inferbench/bench-server/internal/api"
	"github.com/inferbench/bench-server/internal/api/middleware"
	"github.com/inferbench/bench-server/internal/app"
)

func (s *Server) SetupRoutes(app *app.App) {
	// Health check endpoint
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := s.ginEngine.Group("/api/v1")

	// Authentication middleware
	apiV1.Use(handlerWrapper(app, middleware.AuthenticationMiddleware))

	apiV1.POST("/benchmarks", handlerWrapper(app, api.SubmitBenchmarkHandler))
	apiV1.GET("/benchmarks", handlerWrapper(app, api.ListJobsHandler))
	apiV1.GET("/benchmarks/:id", handlerWrapper(app, api.GetJobHandler))
	apiV1.GET("/benchmarks/:id/stream", handlerWrapper(app, api.StreamJobHandler))
	apiV1.GET("/queue", handlerWrapper(app, api.QueueStatusHandler))
	apiV1.GET("/results", handlerWrapper(app, api.ListResultsHandler))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
