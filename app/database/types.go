package database

import (
	"errors"
	"fmt"
	"time"
)

const (
	FetchedAtLayout   = "2006-01-02 15:04:05"
	SessionDateLayout = "2006-01-02"
	EventTimeLayout   = "2006-01-02T15:04:05"

	ArchivedTitle = "[ARCHIVED]"

	LastActiveKey = "last_active_timestamp"
)

// SessionDate returns the local calendar day t belongs to.
func SessionDate(t time.Time) string {
	return t.In(time.Local).Format(SessionDateLayout)
}

type Item struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Category      string    `json:"category"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	ThumbnailData string    `json:"thumbnail_data,omitempty"`
	Description   string    `json:"description,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
	SessionDate   string    `json:"session_date"`
	IsSeen        bool      `json:"is_seen"`
	IsSaved       bool      `json:"is_saved"`
	IsConsumed    bool      `json:"is_consumed"`
}

type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityDebug, SeverityInfo, SeverityWarn, SeverityError:
		return Severity(s), nil
	case "warning":
		return SeverityWarn, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Event types written by the store and the background loops.
const (
	EventConsumeStart     = "consume_start"
	EventBudgetAnalysis   = "budget_analysis"
	EventConsumeEmpty     = "consume_empty"
	EventConsumeComplete  = "consume_complete"
	EventCrawlStart       = "crawl_start"
	EventCrawlSuccess     = "crawl_success"
	EventCrawlError       = "crawl_error"
	EventCrawlSkipped     = "crawl_skipped"
	EventCrawlCycle       = "crawl_cycle"
	EventProviderFetch    = "provider_fetch"
	EventInsertError      = "insert_error"
	EventPrune            = "prune"
	EventNotificationSent = "notification_sent"
	EventResume           = "resume_consumption"
)

type DiagnosticEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	Metadata      string    `json:"metadata,omitempty"`
	RelatedItemID string    `json:"related_item_id,omitempty"`
}

type ConsumeResult struct {
	ItemsConsumed       int     `json:"items_consumed"`
	ItemsDiscarded      int     `json:"items_discarded"`
	TimeConsumedMinutes float64 `json:"time_consumed_minutes"`
	MemesConsumed       int     `json:"memes_consumed"`
	JokesConsumed       int     `json:"jokes_consumed"`
	NewsConsumed        int     `json:"news_consumed"`
	VideosConsumed      int     `json:"videos_consumed"`
	GossipConsumed      int     `json:"gossip_consumed"`
	Reason              string  `json:"reason,omitempty"`
}

type DayStats struct {
	TotalItems                int     `json:"total_items"`
	MemesFound                int     `json:"memes_found"`
	JokesFound                int     `json:"jokes_found"`
	NewsChecked               int     `json:"news_checked"`
	VideosFound               int     `json:"videos_found"`
	GossipFound               int     `json:"gossip_found"`
	EstimatedTimeSavedMinutes float64 `json:"estimated_time_saved_minutes"`
}

type BudgetAnalysis struct {
	MinItemCost            float64 `json:"min_item_cost"`
	MaxItemCost            float64 `json:"max_item_cost"`
	EstimatedBufferMinutes float64 `json:"estimated_buffer_minutes"`
	TotalPendingCost       float64 `json:"total_pending_cost"`
}

type DiagnosticSummary struct {
	PendingCount   int            `json:"pending_count"`
	BufferHealth   string         `json:"buffer_health"`
	BudgetAnalysis BudgetAnalysis `json:"budget_analysis"`
}

var ErrItemNotFound = errors.New("item not found")

// StoreError wraps a storage fault with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
