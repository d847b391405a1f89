// Package reminder runs a scheduled sweep that announces Incomplete tasks
// whose deadline is approaching. It never mutates tasks.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/taskflow/events"
	"github.com/example/taskflow/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/robfig/cron/v3"
)

// Config configures the reminder sweep.
type Config struct {
	// Schedule is a cron spec or descriptor such as "@every 15m".
	Schedule string
	// Window is how far ahead of now a deadline counts as due soon.
	Window time.Duration
	// BatchSize caps the tasks fetched per sweep.
	BatchSize int
}

// Module emits TaskDueSoon events on a cron schedule.
type Module struct {
	config   Config
	taskPort task.TaskPort
	eventBus mono.EventBus
	cron     *cron.Cron
	logger   types.Logger
	now      func() time.Time

	mu        sync.Mutex
	notified  map[string]time.Time // task ID -> deadline already announced
	lastSweep time.Time
	lastErr   error
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new reminder module.
func NewModule(config Config, logger types.Logger) *Module {
	if config.BatchSize <= 0 {
		config.BatchSize = task.DefaultDueLimit
	}
	return &Module{
		config:   config,
		logger:   logger.WithModule("reminder"),
		now:      time.Now,
		notified: make(map[string]time.Time),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "reminder"
}

// Dependencies returns the modules this module depends on.
func (m *Module) Dependencies() []string {
	return []string{"task"}
}

// SetDependencyServiceContainer receives the task module's container.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "task" {
		m.taskPort = task.NewTaskAdapter(container)
	}
}

// SetEventBus sets the bus reminders are published on.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskDueSoonV1.ToBase(),
	}
}

// Start schedules the sweep.
func (m *Module) Start(_ context.Context) error {
	if m.taskPort == nil {
		return fmt.Errorf("taskPort dependency not set")
	}

	m.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := m.cron.AddFunc(m.config.Schedule, m.runSweep); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", m.config.Schedule, err)
	}
	m.cron.Start()

	m.logger.Info("Module started", "schedule", m.config.Schedule, "window", m.config.Window.String())
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (m *Module) Stop(ctx context.Context) error {
	if m.cron != nil {
		select {
		case <-m.cron.Stop().Done():
		case <-ctx.Done():
			m.logger.Warn("Stopped before the running sweep finished")
		}
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health reports the outcome of the last sweep.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	details := map[string]any{
		"schedule":   m.config.Schedule,
		"window":     m.config.Window.String(),
		"tracked":    len(m.notified),
		"last_sweep": m.lastSweep,
	}
	if m.lastErr != nil {
		details["last_error"] = m.lastErr.Error()
	}

	// A failed sweep is retried on the next tick; it does not make the
	// service unhealthy.
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

func (m *Module) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sent, err := m.Sweep(ctx)
	if err != nil {
		m.logger.Error("Reminder sweep failed", "error", err)
		return
	}
	if sent > 0 {
		m.logger.Info("Reminder sweep finished", "reminders", sent)
	}
}

// Sweep announces every Incomplete task due within the window that has not
// been announced for its current deadline. Returns the number of tasks
// announced.
func (m *Module) Sweep(ctx context.Context) (int, error) {
	now := m.now().UTC()

	due, err := m.taskPort.ListDue(ctx, now, now.Add(m.config.Window), m.config.BatchSize)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSweep = now
	m.lastErr = err
	if err != nil {
		return 0, err
	}

	// Forget tasks whose deadline has passed; they can no longer be due soon.
	for id, deadline := range m.notified {
		if deadline.Before(now) {
			delete(m.notified, id)
		}
	}

	sent := 0
	for _, t := range due {
		if deadline, ok := m.notified[t.ID]; ok && deadline.Equal(t.Deadline) {
			continue
		}

		if m.eventBus != nil {
			event := events.TaskDueSoonEvent{
				TaskID:   t.ID,
				UserID:   t.OwnerID,
				Title:    t.Title,
				Deadline: t.Deadline,
				NotedAt:  now,
			}
			if err := events.TaskDueSoonV1.Publish(m.eventBus, event, nil); err != nil {
				m.logger.Warn("Failed to publish TaskDueSoon", "task_id", t.ID, "error", err)
				continue
			}
		}

		m.notified[t.ID] = t.Deadline
		sent++
	}

	return sent, nil
}
