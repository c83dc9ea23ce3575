package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/provider"
)

// CrawlResult summarizes one provider visit.
type CrawlResult struct {
	Fetched  int
	Inserted int
	Failed   int
}

type CrawlProviderTask struct {
	Task
	provider   provider.Provider
	httpClient *http.Client
	itemRepo   database.ItemRepository
	diagRepo   database.DiagnosticRepository
	now        func() time.Time

	Result CrawlResult
}

func NewCrawlProviderTask(p provider.Provider, httpClient *http.Client, itemRepo database.ItemRepository, diagRepo database.DiagnosticRepository) *CrawlProviderTask {
	return &CrawlProviderTask{
		Task:       NewTask(TaskTypeCrawlProvider, p.Name()),
		provider:   p,
		httpClient: httpClient,
		itemRepo:   itemRepo,
		diagRepo:   diagRepo,
		now:        time.Now,
	}
}

// Execute fetches from the provider and inserts what it returns. A failing
// or empty provider is reported and skipped; an item that cannot be stored
// is reported and dropped.
func (t *CrawlProviderTask) Execute(ctx context.Context) error {
	name := t.provider.Name()
	category := t.provider.Category()

	t.logEvent(database.DiagnosticEvent{
		EventType: database.EventCrawlStart,
		Message:   fmt.Sprintf("Crawling %s (%s)", name, category),
		Metadata:  database.FormatMetadata(map[string]any{"provider": name, "category": category}),
	})

	fetched, err := t.provider.Fetch(ctx, t.httpClient)
	if err != nil {
		t.logEvent(database.DiagnosticEvent{
			EventType: database.EventCrawlError,
			Severity:  database.SeverityWarn,
			Message:   fmt.Sprintf("Crawl of %s failed: %v", name, err),
			Metadata:  database.FormatMetadata(map[string]any{"provider": name, "error": err.Error()}),
		})
		return fmt.Errorf("failed to fetch from %s: %w", name, err)
	}

	t.Result.Fetched = len(fetched)
	if len(fetched) == 0 {
		t.logEvent(database.DiagnosticEvent{
			EventType: database.EventCrawlError,
			Severity:  database.SeverityWarn,
			Message:   fmt.Sprintf("Crawl of %s returned no items", name),
			Metadata:  database.FormatMetadata(map[string]any{"provider": name}),
		})
		return nil
	}

	now := t.now()
	for _, f := range fetched {
		item := toItem(f, now)
		if item.Category == "" {
			item.Category = category
		}
		if item.Source == "" {
			item.Source = name
		}

		inserted, err := t.itemRepo.Insert(item)
		if err != nil {
			t.Result.Failed++
			t.logEvent(database.DiagnosticEvent{
				EventType:     database.EventInsertError,
				Severity:      database.SeverityError,
				Message:       fmt.Sprintf("Failed to store %s item: %v", name, err),
				RelatedItemID: item.ID,
			})
			continue
		}
		if inserted {
			t.Result.Inserted++
		}
	}

	t.logEvent(database.DiagnosticEvent{
		EventType: database.EventCrawlSuccess,
		Message:   fmt.Sprintf("Fetched %d items from %s (%d new)", t.Result.Fetched, name, t.Result.Inserted),
		Metadata: database.FormatMetadata(map[string]any{
			"provider": name,
			"fetched":  t.Result.Fetched,
			"inserted": t.Result.Inserted,
			"failed":   t.Result.Failed,
		}),
	})

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"provider", name,
		"duration", t.GetDuration(),
		"fetched", t.Result.Fetched,
		"new", t.Result.Inserted,
		"failed", t.Result.Failed)

	return nil
}

func (t *CrawlProviderTask) logEvent(event database.DiagnosticEvent) {
	if err := t.diagRepo.LogEvent(event); err != nil {
		slog.Warn("Failed to log diagnostic event", "type", event.EventType, "provider", t.provider.Name(), "error", err)
	}
}

func toItem(f provider.FetchedItem, fetchedAt time.Time) database.Item {
	return database.Item{
		ID:            provider.StableID(f.URL),
		Source:        f.Source,
		Category:      f.Category,
		Title:         f.Title,
		URL:           f.URL,
		ThumbnailURL:  f.ThumbnailURL,
		ThumbnailData: f.ThumbnailData,
		Description:   f.Description,
		FetchedAt:     fetchedAt,
		SessionDate:   database.SessionDate(fetchedAt),
	}
}
