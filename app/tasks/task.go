package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

type TaskType string

const (
	TaskTypeCrawlProvider    TaskType = "crawl_provider"
	TaskTypePruneItems       TaskType = "prune_items"
	TaskTypeClearDiagnostics TaskType = "clear_diagnostics"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	Start()
	GetDuration() time.Duration
}

// Task carries the bookkeeping shared by every task. Tasks are not retried;
// the next scheduled run is the retry.
type Task struct {
	ID        string
	Type      TaskType
	Target    string
	StartedAt *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetTarget() string {
	return t.Target
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, target string) Task {
	uniqueID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.IntN(10000))

	return Task{
		ID:     uniqueID,
		Type:   taskType,
		Target: target,
	}
}
