package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"
)

// ModuleConfig configures the rate limit module. An empty RedisAddr
// selects Fiber's in-memory limiter.
type ModuleConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Limit         Config
	KeyPrefix     string
}

// Module provides the HTTP rate limiting middleware as a mono module.
type Module struct {
	config  ModuleConfig
	client  *redis.Client
	handler fiber.Handler
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new rate limiting module.
func NewModule(config ModuleConfig, logger types.Logger) *Module {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "taskflow:ratelimit:"
	}
	return &Module{
		config: config,
		logger: logger.WithModule("ratelimit"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start connects to Redis when configured and builds the middleware.
func (m *Module) Start(ctx context.Context) error {
	if m.config.RedisAddr == "" {
		m.handler = m.memoryHandler()
		m.logger.Info("Module started", "backend", "memory",
			"limit", m.config.Limit.RequestsPerWindow, "window", m.config.Limit.WindowSize.String())
		return nil
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:         m.config.RedisAddr,
		Password:     m.config.RedisPassword,
		DB:           m.config.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", m.config.RedisAddr, err)
	}

	window := NewSlidingWindowLimiter(m.client, m.config.Limit, m.config.KeyPrefix+"ip:")
	m.handler = IPMiddleware(window, m.config.Limit.RequestsPerWindow, m.logger)

	m.logger.Info("Module started", "backend", "redis", "redis", m.config.RedisAddr,
		"limit", m.config.Limit.RequestsPerWindow, "window", m.config.Limit.WindowSize.String())
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Error("Failed to close Redis connection", "error", err)
			return err
		}
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health reports the limiter backend and, for Redis, its reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": "memory"},
		}
	}

	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"backend": "redis", "redis_addr": m.config.RedisAddr},
	}
}

// Handler returns the middleware. Requests pass through unlimited until
// the module has started.
func (m *Module) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.handler == nil {
			return c.Next()
		}
		return m.handler(c)
	}
}

func (m *Module) memoryHandler() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               m.config.Limit.RequestsPerWindow,
		Expiration:        m.config.Limit.WindowSize,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: tooManyRequests,
	})
}
