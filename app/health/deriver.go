// Package health summarizes provider reliability from the diagnostic log.
//
// The result is a heuristic: events are attributed to a provider when their
// message contains the provider name, so a name that is a substring of
// another provider's name also picks up that provider's events.
package health

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/lysyi3m/cazzmachine/app/database"
)

const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusUnknown = "unknown"

	Window = 24 * time.Hour
)

var scannedEvents = []string{
	database.EventCrawlStart,
	database.EventCrawlSuccess,
	database.EventCrawlError,
	database.EventProviderFetch,
	database.EventInsertError,
}

type EventSource interface {
	EventsSince(since time.Time, eventTypes ...string) ([]database.DiagnosticEvent, error)
}

type ItemSource interface {
	HasItemsForCategory(day, category string) (bool, error)
}

// KnownProvider names a provider and the category it fills.
type KnownProvider struct {
	Name     string
	Category string
}

type Status struct {
	ProviderName       string `json:"provider_name"`
	Category           string `json:"category"`
	LastFetchStatus    string `json:"last_fetch_status"`
	LastFetchTimestamp string `json:"last_fetch_timestamp,omitempty"`
	RecentErrorCount   int    `json:"recent_error_count"`
}

type Deriver struct {
	events EventSource
	items  ItemSource
	now    func() time.Time
}

func NewDeriver(events EventSource, items ItemSource) *Deriver {
	return &Deriver{
		events: events,
		items:  items,
		now:    time.Now,
	}
}

// Derive returns one status per known provider, in the order given.
func (d *Deriver) Derive(providers []KnownProvider) ([]Status, error) {
	now := d.now()

	events, err := d.events.EventsSince(now.Add(-Window), scannedEvents...)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent crawl events: %w", err)
	}

	folded := make([]string, len(events))
	for i, event := range events {
		folded[i] = fold(event.Message)
	}

	today := database.SessionDate(now)
	statuses := make([]Status, 0, len(providers))
	for _, p := range providers {
		status := scan(p, events, folded)

		if status.LastFetchStatus == StatusUnknown {
			hasItems, err := d.items.HasItemsForCategory(today, p.Category)
			if err != nil {
				return nil, fmt.Errorf("failed to check items for %s: %w", p.Name, err)
			}
			if hasItems {
				status.LastFetchStatus = StatusOK
				status.LastFetchTimestamp = today
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// scan walks events newest first. The first success settles the status;
// error-severity matches seen before it are counted.
func scan(p KnownProvider, events []database.DiagnosticEvent, folded []string) Status {
	status := Status{
		ProviderName:    p.Name,
		Category:        p.Category,
		LastFetchStatus: StatusUnknown,
	}

	name := fold(p.Name)
	for i, event := range events {
		if !strings.Contains(folded[i], name) {
			continue
		}

		if status.LastFetchTimestamp == "" {
			status.LastFetchTimestamp = event.Timestamp.In(time.Local).Format(database.EventTimeLayout)
		}

		if event.EventType == database.EventCrawlSuccess {
			status.LastFetchStatus = StatusOK
			break
		}
		if event.Severity == database.SeverityError {
			status.RecentErrorCount++
			status.LastFetchStatus = StatusError
		}
	}

	return status
}

func fold(s string) string {
	return cases.Fold().String(s)
}
