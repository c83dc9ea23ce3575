package api

import (
	"net/http"
	"time"

	"github.com/lysyi3m/cazzmachine/app/cfg"
	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/feed"
	"github.com/lysyi3m/cazzmachine/app/health"
	"github.com/lysyi3m/cazzmachine/app/notify"
	"github.com/lysyi3m/cazzmachine/app/provider"
	"github.com/lysyi3m/cazzmachine/app/tasks"
)

type GeneratorInterface interface {
	Run(day string, items []database.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type HealthDeriverInterface interface {
	Derive(providers []health.KnownProvider) ([]health.Status, error)
}

var _ HealthDeriverInterface = (*health.Deriver)(nil)

type LifecycleInterface interface {
	IsBackground() bool
	Background() error
	Foreground() (*notify.ResumeResult, error)
}

var _ LifecycleInterface = (*notify.Lifecycle)(nil)

var _ tasks.CrawlSchedulerInterface = (*tasks.Scheduler)(nil)

type Handler struct {
	itemRepo    database.ItemRepository
	diagRepo    database.DiagnosticRepository
	stateRepo   database.StateRepository
	generator   GeneratorInterface
	configCache *provider.ConfigCache
	deriver     HealthDeriverInterface
	scheduler   tasks.CrawlSchedulerInterface
	lifecycle   LifecycleInterface
	knobs       *cfg.Knobs
	hub         http.Handler
	version     string
	now         func() time.Time
}

type consumeRequest struct {
	BudgetMinutes *float64 `json:"budget_minutes" binding:"required"`
}

type logEventRequest struct {
	EventType     string         `json:"event_type" binding:"required"`
	Severity      string         `json:"severity"`
	Message       string         `json:"message" binding:"required"`
	Metadata      map[string]any `json:"metadata"`
	RelatedItemID string         `json:"related_item_id"`
}

type knobsRequest struct {
	ThrottleLevel *int `json:"throttle_level"`
	ThreadCount   *int `json:"thread_count"`
}

type lifecycleRequest struct {
	Background *bool `json:"background" binding:"required"`
}

type lastActiveRequest struct {
	Timestamp *time.Time `json:"timestamp" binding:"required"`
}

type summaryResponse struct {
	Stats       *database.DayStats `json:"stats"`
	SummaryText string             `json:"summary_text"`
	Highlights  []database.Item    `json:"highlights"`
}
