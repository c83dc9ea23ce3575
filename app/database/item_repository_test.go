package database

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func TestInsertDuplicateURL(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	item := testItem(1, "meme", testDay)
	inserted, err := store.Insert(item)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to be reported as inserted")
	}

	dup := item
	dup.ID = "another-id"
	dup.Title = "same url, different title"
	inserted, err = store.Insert(dup)
	if err != nil {
		t.Fatalf("Expected no error on duplicate, got %v", err)
	}
	if inserted {
		t.Error("Expected duplicate URL to be reported as not inserted")
	}

	count, err := store.PendingCount(day)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row, got %d", count)
	}
}

func TestConsumeBatchIsIdempotent(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	for i := 0; i < 4; i++ {
		if _, err := store.Insert(testItem(i, "joke", testDay.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	ids := []string{"id-joke-0", "id-joke-2", "missing"}
	if err := store.ConsumeBatch(ids); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.ConsumeBatch(ids); err != nil {
		t.Fatalf("Expected no error on second batch, got %v", err)
	}

	count, err := store.PendingCount(day)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 pending items, got %d", count)
	}

	items, err := store.ListConsumed(day)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 consumed items, got %d", len(items))
	}

	if err := store.ConsumeBatch(nil); err != nil {
		t.Errorf("Expected empty batch to be a no-op, got %v", err)
	}
}

func TestConsumePendingGreedyFIFO(t *testing.T) {
	db := newTestDB(t)
	store := NewItemStore(db)
	day := SessionDate(testDay)

	for i := 0; i < 3; i++ {
		if _, err := store.Insert(testItem(i, "meme", testDay.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Insert(testItem(0, "video", testDay.Add(3*time.Second))); err != nil {
		t.Fatal(err)
	}

	before, _ := store.PendingCount(day)

	result, err := store.ConsumePending(day, 1.2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.ItemsConsumed != 2 {
		t.Errorf("Expected 2 items consumed, got %d", result.ItemsConsumed)
	}
	if result.MemesConsumed != 2 {
		t.Errorf("Expected 2 memes consumed, got %d", result.MemesConsumed)
	}
	if math.Abs(result.TimeConsumedMinutes-1.0) > 1e-9 {
		t.Errorf("Expected 1.0 minutes consumed, got %v", result.TimeConsumedMinutes)
	}
	if result.ItemsDiscarded != 2 {
		t.Errorf("Expected 2 items discarded, got %d", result.ItemsDiscarded)
	}
	if result.Reason != "" {
		t.Errorf("Expected no reason, got %q", result.Reason)
	}

	after, _ := store.PendingCount(day)
	if before-after != result.ItemsConsumed {
		t.Errorf("Expected pending delta %d, got %d", result.ItemsConsumed, before-after)
	}

	consumed, err := store.ListConsumed(day)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, item := range consumed {
		got[item.ID] = true
	}
	if !got["id-meme-0"] || !got["id-meme-1"] {
		t.Errorf("Expected the two oldest memes to be consumed, got %v", got)
	}

	events, err := NewDiagnosticStore(db).Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, e := range events {
		types[e.EventType] = true
	}
	for _, expected := range []string{EventConsumeStart, EventBudgetAnalysis, EventConsumeComplete} {
		if !types[expected] {
			t.Errorf("Expected %s event to be logged", expected)
		}
	}
}

func TestConsumePendingEmptyBuffer(t *testing.T) {
	db := newTestDB(t)
	store := NewItemStore(db)

	result, err := store.ConsumePending(SessionDate(testDay), 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ItemsConsumed != 0 {
		t.Errorf("Expected 0 items consumed, got %d", result.ItemsConsumed)
	}
	if result.Reason != "empty_buffer" {
		t.Errorf("Expected reason 'empty_buffer', got %q", result.Reason)
	}

	events, err := NewDiagnosticStore(db).EventsSince(testDay.Add(-48*time.Hour), EventConsumeEmpty)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 consume_empty event, got %d", len(events))
	}
	if events[0].Severity != SeverityWarn {
		t.Errorf("Expected severity warn, got %s", events[0].Severity)
	}
}

func TestConsumePendingAllItemsTooExpensive(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	if _, err := store.Insert(testItem(0, "video", testDay)); err != nil {
		t.Fatal(err)
	}

	result, err := store.ConsumePending(day, 1.0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.ItemsConsumed != 0 {
		t.Errorf("Expected 0 items consumed, got %d", result.ItemsConsumed)
	}
	if result.Reason != "all_items_too_expensive" {
		t.Errorf("Expected reason 'all_items_too_expensive', got %q", result.Reason)
	}

	count, _ := store.PendingCount(day)
	if count != 1 {
		t.Errorf("Expected video to stay pending, got %d pending", count)
	}
}

func TestConsumePendingIgnoresOtherDays(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	yesterday := testDay.AddDate(0, 0, -1)

	if _, err := store.Insert(testItem(0, "joke", yesterday)); err != nil {
		t.Fatal(err)
	}

	result, err := store.ConsumePending(SessionDate(testDay), 5)
	if err != nil {
		t.Fatal(err)
	}
	if result.Reason != "empty_buffer" {
		t.Errorf("Expected yesterday's items to be ignored, got reason %q", result.Reason)
	}
}

func TestConcurrentInserts(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := store.Insert(testItem(n, "meme", testDay)); err != nil {
				errs <- err
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Concurrent inserts did not finish, possible deadlock")
	}
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected insert error: %v", err)
	}

	count, err := store.PendingCount(day)
	if err != nil {
		t.Fatal(err)
	}
	if count != 50 {
		t.Errorf("Expected 50 rows, got %d", count)
	}
}

func TestConcurrentInsertSameURL(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	insertedCount := 0
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			item := testItem(7, "meme", testDay)
			item.ID = fmt.Sprintf("racer-%d", n)
			inserted, err := store.Insert(item)
			if err != nil {
				errs <- err
				return
			}
			if inserted {
				mu.Lock()
				insertedCount++
				mu.Unlock()
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Concurrent inserts did not finish, possible deadlock")
	}
	close(errs)

	for err := range errs {
		t.Errorf("Unexpected insert error: %v", err)
	}

	if insertedCount != 1 {
		t.Errorf("Expected exactly 1 successful insert, got %d", insertedCount)
	}

	count, err := store.PendingCount(day)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored row, got %d", count)
	}
}

func TestConsumeAndLogConcurrently(t *testing.T) {
	db := newTestDB(t)
	store := NewItemStore(db)
	diagnostics := NewDiagnosticStore(db)
	day := SessionDate(testDay)

	for i := 0; i < 20; i++ {
		if _, err := store.Insert(testItem(i, "joke", testDay.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumePending(day, 0.6); err != nil {
				t.Errorf("ConsumePending failed: %v", err)
			}
		}()
		go func(n int) {
			defer wg.Done()
			err := diagnostics.LogEvent(DiagnosticEvent{
				EventType: "test_event",
				Severity:  SeverityInfo,
				Message:   fmt.Sprintf("event %d", n),
			})
			if err != nil {
				t.Errorf("LogEvent failed: %v", err)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Consume and log did not finish, possible deadlock")
	}

	count, _ := store.PendingCount(day)
	if count != 0 {
		t.Errorf("Expected all 20 jokes consumed after 10 rounds of 2, got %d pending", count)
	}
}

func TestListConsumedByCategory(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	store.Insert(testItem(0, "news", testDay))
	store.Insert(testItem(1, "news", testDay.Add(time.Minute)))
	store.Insert(testItem(0, "meme", testDay))
	if err := store.ConsumeBatch([]string{"id-news-0", "id-news-1", "id-meme-0"}); err != nil {
		t.Fatal(err)
	}

	items, err := store.ListConsumedByCategory(day, "news")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 news items, got %d", len(items))
	}
	if items[0].ID != "id-news-1" {
		t.Errorf("Expected newest item first, got %s", items[0].ID)
	}
	if !items[0].FetchedAt.Equal(testDay.Add(time.Minute)) {
		t.Errorf("Expected fetched_at %v, got %v", testDay.Add(time.Minute), items[0].FetchedAt)
	}
}

func TestLatestUnseenAndMarkSeen(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	item, err := store.LatestUnseenConsumed(day)
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Errorf("Expected no unseen item, got %v", item)
	}

	store.Insert(testItem(0, "gossip", testDay))
	store.Insert(testItem(1, "gossip", testDay.Add(time.Second)))
	store.ConsumeBatch([]string{"id-gossip-0", "id-gossip-1"})

	item, err = store.LatestUnseenConsumed(day)
	if err != nil {
		t.Fatal(err)
	}
	if item == nil || item.ID != "id-gossip-1" {
		t.Fatalf("Expected id-gossip-1, got %v", item)
	}

	if err := store.MarkSeen(item.ID); err != nil {
		t.Fatal(err)
	}

	item, _ = store.LatestUnseenConsumed(day)
	if item == nil || item.ID != "id-gossip-0" {
		t.Errorf("Expected id-gossip-0 after marking newer seen, got %v", item)
	}

	if err := store.MarkSeen("missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestToggleSaved(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	store.Insert(testItem(0, "meme", testDay))

	saved, err := store.ToggleSaved("id-meme-0")
	if err != nil {
		t.Fatal(err)
	}
	if !saved {
		t.Error("Expected item to be saved after first toggle")
	}

	saved, err = store.ToggleSaved("id-meme-0")
	if err != nil {
		t.Fatal(err)
	}
	if saved {
		t.Error("Expected item to be unsaved after second toggle")
	}

	if _, err := store.ToggleSaved("missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestPruneExpired(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	yesterday := testDay.AddDate(0, 0, -1)
	today := SessionDate(testDay)

	store.Insert(testItem(0, "meme", yesterday))
	store.Insert(testItem(1, "meme", yesterday))
	store.Insert(testItem(2, "meme", yesterday))
	store.Insert(testItem(3, "meme", testDay))
	store.ConsumeBatch([]string{"id-meme-1", "id-meme-3"})

	deleted, redacted, err := store.PruneExpired(today)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
	if redacted != 1 {
		t.Errorf("Expected 1 redacted, got %d", redacted)
	}

	archived, err := store.ListConsumed(SessionDate(yesterday))
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 {
		t.Fatalf("Expected 1 archived item, got %d", len(archived))
	}
	if archived[0].Title != ArchivedTitle {
		t.Errorf("Expected title %q, got %q", ArchivedTitle, archived[0].Title)
	}
	if archived[0].Description != "" {
		t.Errorf("Expected description to be cleared, got %q", archived[0].Description)
	}
	if !archived[0].IsSeen {
		t.Error("Expected archived item to be marked seen")
	}

	todays, _ := store.ListConsumed(today)
	if len(todays) != 1 || todays[0].Title == ArchivedTitle {
		t.Errorf("Expected today's item untouched, got %v", todays)
	}

	deleted, redacted, err = store.PruneExpired(today)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 || redacted != 0 {
		t.Errorf("Expected second prune to be a no-op, got deleted=%d redacted=%d", deleted, redacted)
	}
}

func TestTodayStats(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	store.Insert(testItem(0, "meme", testDay))
	store.Insert(testItem(1, "meme", testDay))
	store.Insert(testItem(0, "news", testDay))
	store.Insert(testItem(0, "weather", testDay))
	store.Insert(testItem(0, "video", testDay))
	store.ConsumeBatch([]string{"id-meme-0", "id-meme-1", "id-news-0", "id-weather-0"})

	stats, err := store.TodayStats(day)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 4 {
		t.Errorf("Expected 4 total items, got %d", stats.TotalItems)
	}
	if stats.MemesFound != 2 {
		t.Errorf("Expected 2 memes, got %d", stats.MemesFound)
	}
	if stats.NewsChecked != 1 {
		t.Errorf("Expected 1 news, got %d", stats.NewsChecked)
	}
	if stats.VideosFound != 0 {
		t.Errorf("Expected pending video not counted, got %d", stats.VideosFound)
	}
	// 2 memes at 0.5 plus 1 news at 2.0; the weather item saves nothing.
	if math.Abs(stats.EstimatedTimeSavedMinutes-3.0) > 1e-9 {
		t.Errorf("Expected 3.0 minutes saved, got %v", stats.EstimatedTimeSavedMinutes)
	}
}

func TestDiagnosticSummary(t *testing.T) {
	store := NewItemStore(newTestDB(t))
	day := SessionDate(testDay)

	summary, err := store.DiagnosticSummary(day)
	if err != nil {
		t.Fatal(err)
	}
	if summary.BufferHealth != "empty" {
		t.Errorf("Expected empty buffer, got %s", summary.BufferHealth)
	}

	store.Insert(testItem(0, "joke", testDay))
	store.Insert(testItem(0, "video", testDay))
	store.Insert(testItem(1, "video", testDay))

	summary, err = store.DiagnosticSummary(day)
	if err != nil {
		t.Fatal(err)
	}
	if summary.PendingCount != 3 {
		t.Errorf("Expected 3 pending, got %d", summary.PendingCount)
	}
	if summary.BufferHealth != "moderate" {
		t.Errorf("Expected moderate buffer, got %s", summary.BufferHealth)
	}
	if summary.BudgetAnalysis.MinItemCost != 0.3 {
		t.Errorf("Expected min item cost 0.3, got %v", summary.BudgetAnalysis.MinItemCost)
	}
	if summary.BudgetAnalysis.MaxItemCost != 3.0 {
		t.Errorf("Expected max item cost 3.0, got %v", summary.BudgetAnalysis.MaxItemCost)
	}
}
