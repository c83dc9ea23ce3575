package notify

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/cazzmachine/app/cadence"
	"github.com/lysyi3m/cazzmachine/app/cfg"
	"github.com/lysyi3m/cazzmachine/app/database"
)

// Lifecycle tracks whether the consumer is in the foreground. Coming back
// from the background releases the items that would have been consumed
// while away.
type Lifecycle struct {
	background atomic.Bool

	itemRepo  database.ItemRepository
	diagRepo  database.DiagnosticRepository
	stateRepo database.StateRepository
	knobs     *cfg.Knobs
	now       func() time.Time
}

type ResumeResult struct {
	ElapsedMinutes float64                 `json:"elapsed_minutes"`
	BudgetMinutes  float64                 `json:"budget_minutes"`
	Consumed       *database.ConsumeResult `json:"consumed,omitempty"`
}

func NewLifecycle(itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository,
	stateRepo database.StateRepository, knobs *cfg.Knobs) *Lifecycle {
	return &Lifecycle{
		itemRepo:  itemRepo,
		diagRepo:  diagRepo,
		stateRepo: stateRepo,
		knobs:     knobs,
		now:       time.Now,
	}
}

func (l *Lifecycle) IsBackground() bool {
	return l.background.Load()
}

// Background records the moment the consumer went away.
func (l *Lifecycle) Background() error {
	l.background.Store(true)

	if err := l.stateRepo.SetLastActive(l.now()); err != nil {
		return fmt.Errorf("failed to store last active time: %w", err)
	}
	return nil
}

// Foreground consumes a budget proportional to the time spent away and
// resets the last-active time. Nothing is consumed for absences under a
// minute.
func (l *Lifecycle) Foreground() (*ResumeResult, error) {
	l.background.Store(false)

	now := l.now()
	lastActive, ok, err := l.stateRepo.LastActive()
	if err != nil {
		return nil, fmt.Errorf("failed to read last active time: %w", err)
	}

	result := &ResumeResult{}
	if ok && lastActive.Before(now) {
		elapsed := now.Sub(lastActive)
		result.ElapsedMinutes = elapsed.Minutes()
		result.BudgetMinutes = cadence.ResumeBudget(elapsed, l.knobs.ThreadCount())
	}

	if result.BudgetMinutes > 0 {
		consumed, err := l.itemRepo.ConsumePending(database.SessionDate(now), result.BudgetMinutes)
		if err != nil {
			return nil, fmt.Errorf("failed to consume on resume: %w", err)
		}
		result.Consumed = consumed

		if err := l.diagRepo.LogEvent(database.DiagnosticEvent{
			EventType: database.EventResume,
			Message: fmt.Sprintf("Resumed after %.1f minutes: budget=%.2fmin, consumed %d items",
				result.ElapsedMinutes, result.BudgetMinutes, consumed.ItemsConsumed),
			Metadata: database.FormatMetadata(map[string]any{
				"elapsed_minutes": result.ElapsedMinutes,
				"budget_minutes":  result.BudgetMinutes,
				"thread_count":    l.knobs.ThreadCount(),
			}),
		}); err != nil {
			slog.Warn("Failed to log diagnostic event", "type", database.EventResume, "error", err)
		}
	}

	if err := l.stateRepo.SetLastActive(now); err != nil {
		return nil, fmt.Errorf("failed to store last active time: %w", err)
	}

	slog.Info("Consumer resumed", "elapsed_minutes", result.ElapsedMinutes, "budget_minutes", result.BudgetMinutes)
	return result, nil
}
