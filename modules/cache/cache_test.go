package cache

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/storage"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

// TestConfig for unit tests - requires Redis running on localhost:6379
const testRedisAddr = "localhost:6379"

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// checkRedisAvailable checks if Redis is reachable before creating storage.
// gofiber/storage/redis panics on connection failure, so we check first.
func checkRedisAvailable(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testRedisAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	conn.Close()
}

// memoryStorage is an in-process storage.Storage with expiry.
type memoryStorage struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

var _ storage.Storage = (*memoryStorage)(nil)

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *memoryStorage) GetWithContext(_ context.Context, key string) ([]byte, error) {
	return s.Get(key)
}

func (s *memoryStorage) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, nil
	}
	return e.val, nil
}

func (s *memoryStorage) SetWithContext(_ context.Context, key string, val []byte, exp time.Duration) error {
	return s.Set(key, val, exp)
}

func (s *memoryStorage) Set(key string, val []byte, exp time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{val: append([]byte(nil), val...)}
	if exp > 0 {
		e.expiresAt = s.now().Add(exp)
	}
	s.entries[key] = e
	return nil
}

func (s *memoryStorage) DeleteWithContext(_ context.Context, key string) error {
	return s.Delete(key)
}

func (s *memoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memoryStorage) ResetWithContext(_ context.Context) error { return s.Reset() }

func (s *memoryStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

func (s *memoryStorage) Close() error { return nil }

// setupMemoryListCache creates a ListCache over memoryStorage.
func setupMemoryListCache(t *testing.T, ttl time.Duration) ListCache {
	t.Helper()
	return NewListCache(newMemoryStorage(), "test:", ttl)
}

// setupTestListCache creates a Redis-backed ListCache under a prefix unique
// to the test.
func setupTestListCache(t *testing.T, ttl time.Duration) ListCache {
	t.Helper()
	checkRedisAvailable(t)

	store := redis.New(redis.Config{
		Host: "localhost",
		Port: 6379,
	})
	t.Cleanup(func() { store.Close() })

	prefix := fmt.Sprintf("test:%s:%d:", t.Name(), time.Now().UnixNano())
	return NewListCache(store, prefix, ttl)
}

// backends lists the storages every ListCache test runs against. Redis
// cases skip when no server is reachable.
var backends = []struct {
	name  string
	setup func(*testing.T, time.Duration) ListCache
}{
	{"memory", setupMemoryListCache},
	{"redis", setupTestListCache},
}

type cachedList struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

func mustGeneration(t *testing.T, c ListCache, ownerID string) string {
	t.Helper()
	gen, err := c.Generation(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("Generation() error = %v", err)
	}
	return gen
}

func TestListCache_SetAndGet(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			c := b.setup(t, time.Minute)
			ctx := context.Background()
			gen := mustGeneration(t, c, "owner-1")

			var miss cachedList
			found, err := c.Get(ctx, "owner-1", gen, "list:all", &miss)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if found {
				t.Fatal("Get() before Set returned found = true")
			}

			want := cachedList{IDs: []string{"a", "b"}, Count: 2}
			if err := c.Set(ctx, "owner-1", gen, "list:all", want); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			var got cachedList
			found, err = c.Get(ctx, "owner-1", gen, "list:all", &got)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !found {
				t.Fatal("Get() after Set returned found = false")
			}
			if got.Count != 2 || len(got.IDs) != 2 || got.IDs[0] != "a" {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}

			stats := c.Stats()
			if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
				t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 1 set", stats)
			}
			if stats.HitRate != 50 {
				t.Errorf("HitRate = %v, want 50", stats.HitRate)
			}
		})
	}
}

func TestListCache_GenerationIsStable(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			c := b.setup(t, time.Minute)

			first := mustGeneration(t, c, "owner-1")
			if first == "" {
				t.Fatal("Generation() returned an empty stamp")
			}
			if again := mustGeneration(t, c, "owner-1"); again != first {
				t.Errorf("Generation() = %q, then %q; want a stable stamp", first, again)
			}

			if err := c.InvalidateOwner(context.Background(), "owner-1"); err != nil {
				t.Fatalf("InvalidateOwner() error = %v", err)
			}
			if next := mustGeneration(t, c, "owner-1"); next == first {
				t.Error("InvalidateOwner() kept the old generation")
			}
		})
	}
}

func TestListCache_InvalidateOwner(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			c := b.setup(t, time.Minute)
			ctx := context.Background()

			if err := c.Set(ctx, "owner-1", mustGeneration(t, c, "owner-1"), "list:all", cachedList{Count: 1}); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := c.Set(ctx, "owner-2", mustGeneration(t, c, "owner-2"), "list:all", cachedList{Count: 2}); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			if err := c.InvalidateOwner(ctx, "owner-1"); err != nil {
				t.Fatalf("InvalidateOwner() error = %v", err)
			}

			var result cachedList
			found, _ := c.Get(ctx, "owner-1", mustGeneration(t, c, "owner-1"), "list:all", &result)
			if found {
				t.Error("owner-1 entry should be invalidated")
			}

			found, _ = c.Get(ctx, "owner-2", mustGeneration(t, c, "owner-2"), "list:all", &result)
			if !found {
				t.Error("owner-2 entry should survive invalidation of owner-1")
			}
			if result.Count != 2 {
				t.Errorf("owner-2 Count = %d, want 2", result.Count)
			}
		})
	}
}

// A fill that read the database before an invalidation must not be served
// under the generation that invalidation created.
func TestListCache_FillRacingInvalidation(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			c := b.setup(t, time.Minute)
			ctx := context.Background()

			gen := mustGeneration(t, c, "owner-1")
			var miss cachedList
			if found, _ := c.Get(ctx, "owner-1", gen, "list:all", &miss); found {
				t.Fatal("Get() on an empty cache returned found = true")
			}

			if err := c.InvalidateOwner(ctx, "owner-1"); err != nil {
				t.Fatalf("InvalidateOwner() error = %v", err)
			}
			if err := c.Set(ctx, "owner-1", gen, "list:all", cachedList{IDs: []string{"old"}, Count: 1}); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			var got cachedList
			found, err := c.Get(ctx, "owner-1", mustGeneration(t, c, "owner-1"), "list:all", &got)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if found {
				t.Errorf("Get() served %+v written under the retired generation", got)
			}
		})
	}
}

func TestListCache_TTL(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store := newMemoryStorage()
		clock := time.Now()
		store.now = func() time.Time { return clock }
		c := NewListCache(store, "test:", time.Second)
		ctx := context.Background()
		gen := mustGeneration(t, c, "owner-1")

		if err := c.Set(ctx, "owner-1", gen, "list:all", cachedList{Count: 1}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		clock = clock.Add(1500 * time.Millisecond)

		var result cachedList
		found, err := c.Get(ctx, "owner-1", gen, "list:all", &result)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if found {
			t.Error("Get() after TTL expiration should return found = false")
		}
		if again := mustGeneration(t, c, "owner-1"); again != gen {
			t.Errorf("generation expired with the entry: %q, want %q", again, gen)
		}
	})

	t.Run("redis", func(t *testing.T) {
		c := setupTestListCache(t, time.Second)
		ctx := context.Background()
		gen := mustGeneration(t, c, "owner-1")

		if err := c.Set(ctx, "owner-1", gen, "list:all", cachedList{Count: 1}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		time.Sleep(1500 * time.Millisecond)

		var result cachedList
		found, err := c.Get(ctx, "owner-1", gen, "list:all", &result)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if found {
			t.Error("Get() after TTL expiration should return found = false")
		}
	})
}

func TestPluginModule_Defaults(t *testing.T) {
	m := NewPluginModule(Config{RedisAddr: testRedisAddr}, &mockLogger{})

	if m.Name() != "cache" {
		t.Errorf("Name() = %q, want %q", m.Name(), "cache")
	}
	if m.config.Prefix != "taskflow:cache:" {
		t.Errorf("Prefix = %q, want default", m.config.Prefix)
	}
	if m.config.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", m.config.TTL)
	}
	if m.Port() != nil {
		t.Error("Port() before Start should be nil")
	}
	if status := m.Health(context.Background()); status.Healthy {
		t.Error("Health() before Start should be unhealthy")
	}
}

func TestPluginModule_StartStop(t *testing.T) {
	checkRedisAvailable(t)

	m := NewPluginModule(Config{RedisAddr: testRedisAddr, Prefix: "test:plugin:"}, &mockLogger{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.Port() == nil {
		t.Fatal("Port() after Start should not be nil")
	}
	if status := m.Health(ctx); !status.Healthy {
		t.Errorf("Health() = %+v, want healthy", status)
	}
	if err := m.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestPluginModule_StartUnreachable(t *testing.T) {
	m := NewPluginModule(Config{RedisAddr: "127.0.0.1:1"}, &mockLogger{})
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() against an unreachable server should fail")
	}
}

func TestParseRedisAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
	}{
		{"localhost:6379", "localhost", 6379},
		{"redis.internal:6380", "redis.internal", 6380},
		{":6379", "127.0.0.1", 6379},
		{"localhost:notaport", "localhost", 6379},
		{"garbage", "127.0.0.1", 6379},
		{"", "127.0.0.1", 6379},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port := parseRedisAddr(tt.addr)
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("parseRedisAddr(%q) = %s:%d, want %s:%d", tt.addr, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}
