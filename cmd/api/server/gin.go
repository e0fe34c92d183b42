package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginhandler "gorm-multistatement/internal/adapter/gin/handler"
	"gorm-multistatement/internal/adapter/gin/middleware"
	ginrouter "gorm-multistatement/internal/adapter/gin/router"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	handler *ginhandler.ExecHandler,
	rateLimiter *middleware.RateLimiter,
	ginAddr string,
	l *zap.Logger,
) *http.Server {
	// Setup Gin router with all middleware and routes
	router := ginrouter.SetupRouter(handler, rateLimiter, l)

	l.Info("Gin REST API configured", zap.String("address", ginAddr))

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
