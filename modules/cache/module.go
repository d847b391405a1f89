package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

// Config configures the cache plugin.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
}

// PluginModule provides the list cache as a mono plugin module.
// Plugins start first and stop last.
type PluginModule struct {
	container types.ServiceContainer
	storage   storage.Storage
	service   ListCache
	config    Config
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates a new cache plugin module.
func NewPluginModule(config Config, logger types.Logger) *PluginModule {
	if config.Prefix == "" {
		config.Prefix = "taskflow:cache:"
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	return &PluginModule{
		config: config,
		logger: logger.WithModule("cache"),
	}
}

// Name returns the module name.
func (m *PluginModule) Name() string {
	return "cache"
}

// Start connects to Redis. The storage driver panics when the server is
// unreachable, so reachability is checked first.
func (m *PluginModule) Start(_ context.Context) error {
	host, port := parseRedisAddr(m.config.RedisAddr)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		return fmt.Errorf("redis not reachable at %s: %w", m.config.RedisAddr, err)
	}
	conn.Close()

	m.storage = redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: m.config.RedisPassword,
		Database: m.config.RedisDB,
		PoolSize: 50,
	})
	m.service = NewListCache(m.storage, m.config.Prefix, m.config.TTL)

	m.logger.Info("Plugin started", "redis_addr", m.config.RedisAddr, "prefix", m.config.Prefix, "ttl", m.config.TTL.String())
	return nil
}

// Stop closes the Redis connection.
func (m *PluginModule) Stop(_ context.Context) error {
	if m.service != nil {
		if err := m.service.Close(); err != nil {
			m.logger.Error("Error closing connection", "error", err)
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	m.logger.Info("Plugin stopped")
	return nil
}

// SetContainer sets the service container for this plugin.
func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

// Container returns the service container for this plugin.
func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the ListCache consumers use. It is nil until Start.
func (m *PluginModule) Port() ListCache {
	return m.service
}

// Health reports Redis reachability and cache counters.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.storage == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "storage not initialized",
		}
	}

	if _, err := m.storage.GetWithContext(ctx, m.config.Prefix+"__health_check__"); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("health check failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis_addr": m.config.RedisAddr,
			"prefix":     m.config.Prefix,
			"ttl":        m.config.TTL.String(),
			"stats":      m.service.Stats(),
		},
	}
}

// parseRedisAddr parses "host:port" into host and port.
// Returns defaults (127.0.0.1:6379) for invalid or missing values.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}

	if host == "" {
		host = defaultHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}

	return host, port
}
