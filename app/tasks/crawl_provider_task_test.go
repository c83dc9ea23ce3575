package tasks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/cazzmachine/app/database"
)

func TestCrawlProviderTaskInsertsAndDeduplicates(t *testing.T) {
	stores := newTestStores(t)

	p := newFakeProvider("reddit-memes", "meme", 3)
	p.items = append(p.items, p.items[0])

	task := NewCrawlProviderTask(p, http.DefaultClient, stores.items, stores.diags)
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if task.Result.Fetched != 4 {
		t.Errorf("Expected 4 fetched, got %d", task.Result.Fetched)
	}
	if task.Result.Inserted != 3 {
		t.Errorf("Expected 3 inserted, got %d", task.Result.Inserted)
	}

	pending, err := stores.items.PendingCount(database.SessionDate(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if pending != 3 {
		t.Errorf("Expected 3 pending items, got %d", pending)
	}

	if n := len(stores.eventsOfType(t, database.EventCrawlStart)); n != 1 {
		t.Errorf("Expected 1 crawl_start event, got %d", n)
	}
	success := stores.eventsOfType(t, database.EventCrawlSuccess)
	if len(success) != 1 {
		t.Fatalf("Expected 1 crawl_success event, got %d", len(success))
	}
	if !strings.Contains(success[0].Message, "reddit-memes") {
		t.Errorf("Expected success message to name the provider, got '%s'", success[0].Message)
	}

	// A second crawl of the same content stores nothing new.
	again := NewCrawlProviderTask(p, http.DefaultClient, stores.items, stores.diags)
	if err := again.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if again.Result.Inserted != 0 {
		t.Errorf("Expected no new items on repeat crawl, got %d", again.Result.Inserted)
	}
}

func TestCrawlProviderTaskFetchError(t *testing.T) {
	stores := newTestStores(t)

	p := newFakeProvider("bbc-news", "news", 0)
	p.err = errors.New("connection refused")

	task := NewCrawlProviderTask(p, http.DefaultClient, stores.items, stores.diags)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected fetch error to be returned")
	}

	errs := stores.eventsOfType(t, database.EventCrawlError)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 crawl_error event, got %d", len(errs))
	}
	if errs[0].Severity != database.SeverityWarn {
		t.Errorf("Expected warn severity, got %s", errs[0].Severity)
	}
	if n := len(stores.eventsOfType(t, database.EventCrawlSuccess)); n != 0 {
		t.Errorf("Expected no crawl_success event, got %d", n)
	}
}

func TestCrawlProviderTaskEmptyResult(t *testing.T) {
	stores := newTestStores(t)

	task := NewCrawlProviderTask(newFakeProvider("jokeapi", "joke", 0), http.DefaultClient, stores.items, stores.diags)
	if err := task.Execute(context.Background()); err != nil {
		t.Errorf("Expected empty result not to be an error, got %v", err)
	}

	errs := stores.eventsOfType(t, database.EventCrawlError)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "no items") {
		t.Errorf("Expected a warning about no items, got %+v", errs)
	}
}

func TestCrawlProviderTaskInsertErrorDropsOnlyThatItem(t *testing.T) {
	stores := newTestStores(t)

	p := newFakeProvider("hackernews", "news", 3)
	repo := &failingItemRepo{ItemRepository: stores.items, failURL: p.items[1].URL}

	task := NewCrawlProviderTask(p, http.DefaultClient, repo, stores.diags)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if task.Result.Inserted != 2 || task.Result.Failed != 1 {
		t.Errorf("Expected 2 inserted and 1 failed, got %d and %d", task.Result.Inserted, task.Result.Failed)
	}

	insertErrs := stores.eventsOfType(t, database.EventInsertError)
	if len(insertErrs) != 1 {
		t.Fatalf("Expected 1 insert_error event, got %d", len(insertErrs))
	}
	if insertErrs[0].Severity != database.SeverityError {
		t.Errorf("Expected error severity, got %s", insertErrs[0].Severity)
	}
	if insertErrs[0].RelatedItemID == "" {
		t.Error("Expected insert_error to reference the item")
	}
}

func TestCrawlProviderTaskStableIDs(t *testing.T) {
	stores := newTestStores(t)

	p := newFakeProvider("gossip", "gossip", 1)
	task := NewCrawlProviderTask(p, http.DefaultClient, stores.items, stores.diags)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := stores.items.ConsumeBatch([]string{toItem(p.items[0], time.Now()).ID}); err != nil {
		t.Fatal(err)
	}

	consumed, err := stores.items.ListConsumed(database.SessionDate(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 1 {
		t.Errorf("Expected the item to be addressable by its URL-derived id, got %d consumed", len(consumed))
	}
}
