package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/lysyi3m/cazzmachine/app/database"
)

type PruneItemsTask struct {
	Task
	itemRepo database.ItemRepository
	diagRepo database.DiagnosticRepository
	today    string

	Deleted  int
	Redacted int
}

func NewPruneItemsTask(today string, itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository) *PruneItemsTask {
	return &PruneItemsTask{
		Task:     NewTask(TaskTypePruneItems, today),
		itemRepo: itemRepo,
		diagRepo: diagRepo,
		today:    today,
	}
}

func (t *PruneItemsTask) Execute(ctx context.Context) error {
	deleted, redacted, err := t.itemRepo.PruneExpired(t.today)
	if err != nil {
		return fmt.Errorf("failed to prune expired items: %w", err)
	}
	t.Deleted, t.Redacted = deleted, redacted

	if err := t.diagRepo.LogEvent(database.DiagnosticEvent{
		EventType: database.EventPrune,
		Message:   fmt.Sprintf("Pruned items before %s: %d deleted, %d archived", t.today, deleted, redacted),
		Metadata:  database.FormatMetadata(map[string]any{"deleted": deleted, "redacted": redacted}),
	}); err != nil {
		slog.Warn("Failed to log diagnostic event", "type", database.EventPrune, "error", err)
	}

	slog.Info("Task completed", "type", string(t.GetType()), "duration", t.GetDuration(), "deleted", deleted, "redacted", redacted)
	return nil
}

type ClearDiagnosticsTask struct {
	Task
	diagRepo      database.DiagnosticRepository
	retentionDays int
	now           time.Time

	Deleted int
}

func NewClearDiagnosticsTask(retentionDays int, now time.Time, diagRepo database.DiagnosticRepository) *ClearDiagnosticsTask {
	return &ClearDiagnosticsTask{
		Task:          NewTask(TaskTypeClearDiagnostics, fmt.Sprintf("%dd", retentionDays)),
		diagRepo:      diagRepo,
		retentionDays: retentionDays,
		now:           now,
	}
}

// Execute drops events older than the retention period. A retention of zero
// keeps everything.
func (t *ClearDiagnosticsTask) Execute(ctx context.Context) error {
	if t.retentionDays <= 0 {
		return nil
	}

	deleted, err := t.diagRepo.Clear(t.retentionDays, t.now)
	if err != nil {
		return fmt.Errorf("failed to clear diagnostics: %w", err)
	}
	t.Deleted = deleted

	slog.Info("Task completed", "type", string(t.GetType()), "duration", t.GetDuration(), "deleted", deleted, "retention_days", t.retentionDays)
	return nil
}

// Maintenance runs the housekeeping tasks on a cron schedule.
type Maintenance struct {
	itemRepo      database.ItemRepository
	diagRepo      database.DiagnosticRepository
	schedule      string
	retentionDays int
	now           func() time.Time

	cron *rcron.Cron
	mu   sync.Mutex
}

func NewMaintenance(schedule string, retentionDays int, itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository) *Maintenance {
	return &Maintenance{
		itemRepo:      itemRepo,
		diagRepo:      diagRepo,
		schedule:      schedule,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start runs one maintenance pass immediately and registers the schedule.
func (m *Maintenance) Start() error {
	m.RunOnce()

	c := rcron.New()
	if _, err := c.AddFunc(m.schedule, m.RunOnce); err != nil {
		return fmt.Errorf("failed to register maintenance schedule %q: %w", m.schedule, err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	slog.Info("Maintenance scheduled", "schedule", m.schedule, "diagnostics_retention_days", m.retentionDays)
	return nil
}

func (m *Maintenance) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		slog.Warn("Maintenance stop timeout waiting for running jobs")
	}
}

// RunOnce prunes expired items and old diagnostics. Failures are logged; the
// next run retries.
func (m *Maintenance) RunOnce() {
	now := m.now()

	for _, task := range []TaskInterface{
		NewPruneItemsTask(database.SessionDate(now), m.itemRepo, m.diagRepo),
		NewClearDiagnosticsTask(m.retentionDays, now, m.diagRepo),
	} {
		task.Start()
		if err := task.Execute(context.Background()); err != nil {
			slog.Error("Maintenance task failed", "type", string(task.GetType()), "id", task.GetID(), "error", err)
		}
	}
}
