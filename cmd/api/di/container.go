package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gorm-multistatement/cmd/api/infrastructure"
	ginhandler "gorm-multistatement/internal/adapter/gin/handler"
	"gorm-multistatement/internal/adapter/gin/middleware"
	"gorm-multistatement/internal/config"
	"gorm-multistatement/internal/harness"
	"gorm-multistatement/internal/probe"
	redisclient "gorm-multistatement/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Harness     *harness.Harness
	Runner      *probe.Runner
	RedisClient *redisclient.Client
	RateLimiter *middleware.RateLimiter
	GinHandler  *ginhandler.ExecHandler
}

// NewContainer creates and initializes all application dependencies.
// Redis is only dialed when rate limiting is enabled.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Initialize database
	h, err := harness.Open(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := h.RefreshSchema(ctx); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  l,
		Harness: h,
		Runner:  probe.NewRunner(h, l),
	}

	if cfg.RateLimit.Enabled {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		c.RedisClient = rdb
		c.RateLimiter = middleware.NewRateLimiter(
			rdb.Scripter(),
			middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
				Enabled:           cfg.RateLimit.Enabled,
			},
			l,
		)
	}

	// Initialize Gin handler
	c.GinHandler = ginhandler.NewExecHandler(h.Executor(), c.Runner, h, cfg.Logger.ServiceName, l)
	if c.RedisClient != nil {
		c.GinHandler.AddHealthCheck("redis", c.RedisClient)
	}

	return c, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.Harness != nil {
		if err := c.Harness.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
