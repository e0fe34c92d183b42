package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gorm-multistatement/internal/adapter/gin/handler"
	"gorm-multistatement/internal/adapter/gin/middleware"
	"gorm-multistatement/pkg/logger"
)

// SetupRouter configures and returns a Gin router with all routes and middleware.
// rateLimiter may be nil.
func SetupRouter(execHandler *handler.ExecHandler, rateLimiter *middleware.RateLimiter, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware
	router.Use(logger.Recovery(log))
	router.Use(logger.RequestID())
	router.Use(logger.AccessLog(log))

	router.GET("/health", execHandler.Health)

	// API v1 routes
	v1 := router.Group("/v1")
	v1.Use(rateLimiter.Handler())
	{
		v1.POST("/execute", execHandler.Execute)
		v1.POST("/raw", execHandler.Raw)
		v1.POST("/probe", execHandler.Probe)
	}

	return router
}
