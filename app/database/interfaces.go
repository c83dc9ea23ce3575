package database

import (
	"time"
)

type ItemRepository interface {
	Insert(item Item) (bool, error)
	PendingCount(day string) (int, error)
	ConsumeBatch(ids []string) error
	ConsumePending(day string, budgetMinutes float64) (*ConsumeResult, error)

	ListConsumed(day string) ([]Item, error)
	ListConsumedByCategory(day, category string) ([]Item, error)
	LatestUnseenConsumed(day string) (*Item, error)
	HasItemsForCategory(day, category string) (bool, error)

	MarkSeen(id string) error
	ToggleSaved(id string) (bool, error)

	PruneExpired(today string) (int, int, error)

	TodayStats(day string) (*DayStats, error)
	DiagnosticSummary(day string) (*DiagnosticSummary, error)
}

type DiagnosticRepository interface {
	LogEvent(event DiagnosticEvent) error
	Recent(limit int) ([]DiagnosticEvent, error)
	EventsSince(since time.Time, eventTypes ...string) ([]DiagnosticEvent, error)
	Clear(olderThanDays int, now time.Time) (int, error)
}

type StateRepository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	LastActive() (time.Time, bool, error)
	SetLastActive(t time.Time) error
}
