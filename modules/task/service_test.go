package task

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/taskflow/domain/apperr"
	domain "github.com/example/taskflow/domain/task"
	"github.com/example/taskflow/modules/cache"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// memoryListCache is an in-process cache.ListCache with the same
// generation semantics as the storage-backed one.
type memoryListCache struct {
	mu            sync.Mutex
	generations   map[string]int
	entries       map[string][]byte
	hits          uint64
	misses        uint64
	invalidations uint64
}

var _ cache.ListCache = (*memoryListCache)(nil)

func newMemoryListCache() *memoryListCache {
	return &memoryListCache{
		generations: make(map[string]int),
		entries:     make(map[string][]byte),
	}
}

func (c *memoryListCache) Generation(_ context.Context, ownerID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strconv.Itoa(c.generations[ownerID]), nil
}

func (c *memoryListCache) Get(_ context.Context, ownerID, gen, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.entries[ownerID+":"+gen+":"+key]
	if !ok {
		c.misses++
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *memoryListCache) Set(_ context.Context, ownerID, gen, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ownerID+":"+gen+":"+key] = data
	return nil
}

func (c *memoryListCache) InvalidateOwner(_ context.Context, ownerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[ownerID]++
	c.invalidations++
	return nil
}

func (c *memoryListCache) Stats() cache.StatsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.StatsSnapshot{Hits: c.hits, Misses: c.misses, Invalidations: c.invalidations}
}

func (c *memoryListCache) Close() error { return nil }

// deleteBeforeUpdate removes taskID inside the next UPDATE's transaction,
// as a Delete committing between the ownership check and the write would.
func deleteBeforeUpdate(t *testing.T, db *gorm.DB, taskID string) {
	t.Helper()
	err := db.Callback().Update().Before("gorm:update").Register("test:delete_before_update", func(tx *gorm.DB) {
		if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context, "DELETE FROM tasks WHERE id = ?", taskID); err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

// testClock advances by one second on every reading.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, listCache cache.ListCache) *TaskService {
	t.Helper()

	repo := NewTaskRepository(setupTestDB(t))
	svc := NewTaskService(repo, listCache, nil, &mockLogger{})
	svc.now = (&testClock{now: testNow}).Now
	return svc
}

func draft(title string) domain.Draft {
	return domain.Draft{
		Title:       title,
		Description: "description of " + title,
		Deadline:    "2026-12-01",
	}
}

func strPtr(s string) *string { return &s }

func TestTaskService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	created, err := svc.Create(ctx, "alice", domain.Draft{
		Title:       "  Write report ",
		Description: "Quarterly numbers",
		Deadline:    "2026-12-01T09:30:00Z",
		Priority:    "High",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.OwnerID)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, domain.PriorityHigh, created.Priority)
	assert.Equal(t, domain.StatusIncomplete, created.Status)
	assert.False(t, created.Overdue)

	got, err := svc.Get(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.Description, got.Description)
	assert.Equal(t, created.Priority, got.Priority)
	assert.True(t, created.Deadline.Equal(got.Deadline))
}

func TestTaskService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	_, err := svc.Create(ctx, "alice", domain.Draft{Title: "x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, domain.MsgMissingFields, err.Error())

	_, err = svc.Create(ctx, "alice", draft(strings.Repeat("t", 101)))
	assert.Equal(t, domain.MsgTitleTooLong, err.Error())

	_, err = svc.Create(ctx, "alice", draft(strings.Repeat("t", 100)))
	assert.NoError(t, err)
}

func TestTaskService_Ownership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	task, err := svc.Create(ctx, "alice", draft("Private"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "mallory", task.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, MsgNotAuthorizedRead, err.Error())

	_, err = svc.Update(ctx, "mallory", task.ID, domain.Patch{Title: strPtr("Hacked")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, MsgNotAuthorizedWrite, err.Error())

	_, err = svc.Toggle(ctx, "mallory", task.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	err = svc.Delete(ctx, "mallory", task.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, MsgNotAuthorizedDel, err.Error())

	unchanged, err := svc.Get(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", unchanged.Title)

	_, err = svc.Get(ctx, "alice", "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, MsgTaskNotFound, err.Error())
}

func TestTaskService_PayRentScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	yesterday := testNow.Add(-24 * time.Hour).Format(time.RFC3339)
	task, err := svc.Create(ctx, "alice", domain.Draft{
		Title:       "Pay rent",
		Description: "Monthly rent",
		Deadline:    yesterday,
		Priority:    "High",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIncomplete, task.Status)
	assert.True(t, task.Overdue)
	assert.Equal(t, domain.PriorityHigh, task.Priority)

	updated, err := svc.Update(ctx, "alice", task.ID, domain.Patch{Status: strPtr("Completed")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.False(t, updated.Overdue)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	stored, err := svc.Get(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Overdue)
}

func TestTaskService_WriteAfterConcurrentDelete(t *testing.T) {
	writes := map[string]func(*TaskService, context.Context, string) (*domain.Task, error){
		"update": func(svc *TaskService, ctx context.Context, id string) (*domain.Task, error) {
			return svc.Update(ctx, "alice", id, domain.Patch{Title: strPtr("Renamed")})
		},
		"toggle": func(svc *TaskService, ctx context.Context, id string) (*domain.Task, error) {
			return svc.Toggle(ctx, "alice", id)
		},
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newTestService(t, nil)

			task, err := svc.Create(ctx, "alice", draft("Doomed"))
			require.NoError(t, err)
			deleteBeforeUpdate(t, svc.repo.db, task.ID)

			_, err = write(svc, ctx, task.ID)
			assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

			_, err = svc.Get(ctx, "alice", task.ID)
			assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "a write must not re-create a deleted task")
		})
	}
}

func TestTaskService_UpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	task, err := svc.Create(ctx, "alice", draft("Original"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", task.ID, domain.Patch{
		Title:    strPtr("Renamed"),
		Priority: strPtr("Urgent"),
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	stored, err := svc.Get(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", stored.Title)
}

func TestTaskService_ToggleRecomputesOverdue(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	task, err := svc.Create(ctx, "alice", domain.Draft{
		Title:       "Late",
		Description: "Already late",
		Deadline:    "2020-01-01",
	})
	require.NoError(t, err)
	require.True(t, task.Overdue)

	toggled, err := svc.Toggle(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, toggled.Status)
	assert.False(t, toggled.Overdue)

	back, err := svc.Toggle(ctx, "alice", task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIncomplete, back.Status)
	assert.True(t, back.Overdue)
}

func TestTaskService_List(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	first, err := svc.Create(ctx, "alice", draft("Buy milk"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, "alice", draft("Pay rent"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", draft("Buy bread"))
	require.NoError(t, err)

	_, err = svc.Toggle(ctx, "alice", second.ID)
	require.NoError(t, err)

	all, err := svc.List(ctx, "alice", "All", "All", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	completed, err := svc.List(ctx, "alice", "Completed", "", "")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, second.ID, completed[0].ID)

	search, err := svc.List(ctx, "alice", "", "", "MILK")
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, first.ID, search[0].ID)

	_, err = svc.List(ctx, "alice", "Done", "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, domain.MsgInvalidStatusFlt, err.Error())

	_, err = svc.List(ctx, "alice", "", "Urgent", "")
	assert.Equal(t, domain.MsgInvalidPriorityFlt, err.Error())
}

func TestTaskService_ListCache(t *testing.T) {
	ctx := context.Background()
	listCache := newMemoryListCache()
	svc := newTestService(t, listCache)

	_, err := svc.Create(ctx, "alice", draft("One"))
	require.NoError(t, err)

	tasks, err := svc.List(ctx, "alice", "", "", "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	tasks, err = svc.List(ctx, "alice", "All", "All", "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	stats := listCache.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits, "empty and All filters share a cache key")

	_, err = svc.Create(ctx, "alice", draft("Two"))
	require.NoError(t, err)

	tasks, err = svc.List(ctx, "alice", "", "", "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2, "writes must invalidate the owner's cached lists")
	assert.Equal(t, uint64(2), listCache.Stats().Invalidations)
}

func TestTaskService_ListCacheHitIsFiltered(t *testing.T) {
	ctx := context.Background()
	listCache := newMemoryListCache()
	svc := newTestService(t, listCache)

	filter, err := domain.NewFilter("Completed", "", "")
	require.NoError(t, err)
	gen, err := listCache.Generation(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, listCache.Set(ctx, "alice", gen, listCacheKey(filter), []domain.Task{
		{ID: "t1", OwnerID: "alice", Title: "Done", Status: domain.StatusCompleted},
		{ID: "t2", OwnerID: "alice", Title: "Open", Status: domain.StatusIncomplete},
	}))

	tasks, err := svc.List(ctx, "alice", "Completed", "", "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, uint64(1), listCache.Stats().Hits)
}

func TestTaskService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemoryListCache())

	task, err := svc.Create(ctx, "alice", draft("Temporary"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", task.ID))

	_, err = svc.Get(ctx, "alice", task.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = svc.Delete(ctx, "alice", task.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	tasks, err := svc.List(ctx, "alice", "", "", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_Stats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	for _, title := range []string{"a", "b", "c", "d"} {
		_, err := svc.Create(ctx, "alice", draft(title))
		require.NoError(t, err)
	}
	tasks, err := svc.List(ctx, "alice", "", "", "")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, "alice", tasks[0].ID)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(3), stats.Incomplete)
	assert.Equal(t, 25, stats.CompletionRate)
}

func TestTaskService_ListDue(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	soon, err := svc.Create(ctx, "alice", domain.Draft{
		Title:       "Soon",
		Description: "due soon",
		Deadline:    testNow.Add(3 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", domain.Draft{
		Title:       "Later",
		Description: "due later",
		Deadline:    testNow.Add(72 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	due, err := svc.ListDue(ctx, testNow, testNow.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	empty, err := svc.ListDue(ctx, testNow, testNow, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
