// Package redis connects the rate limiter's token buckets to Redis.
package redis

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// connectTimeout bounds the ping done by NewClient.
const connectTimeout = 5 * time.Second

// Config holds Redis connection configuration. Zero timeouts fall back to
// the values in Options.
type Config struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int

	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// Addr returns the host:port pair to dial.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Options converts c into go-redis options. The limiter's scripts are
// short, so reads and writes share one timeout.
func (c Config) Options() *redis.Options {
	dial, io := c.DialTimeout, c.IOTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	if io <= 0 {
		io = 3 * time.Second
	}
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConn,
		DialTimeout:  dial,
		ReadTimeout:  io,
		WriteTimeout: io,
		PoolTimeout:  io + time.Second,
	}
}

// Client is the connection the rate limiter runs its scripts on.
type Client struct {
	rdb  *redis.Client
	addr string
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewClient dials Redis and checks it answers a ping within ctx and
// connectTimeout.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	opts := cfg.Options()
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	log.Info("Redis connected successfully",
		zap.String("addr", opts.Addr),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", opts.PoolSize),
	)

	return &Client{rdb: rdb, addr: opts.Addr, log: log}, nil
}

// Scripter returns the handle Lua scripts are run on.
func (c *Client) Scripter() redis.Scripter {
	return c.rdb
}

// Ping reports whether Redis still answers. It is used as a health check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis at %s: %w", c.addr, err)
	}
	return nil
}

// Close releases the connection pool. Calls after the first return the
// first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.log.Info("Closing Redis connection", zap.String("addr", c.addr))
		c.closeErr = c.rdb.Close()
	})
	return c.closeErr
}
