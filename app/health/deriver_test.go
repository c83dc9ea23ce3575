package health

import (
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/cazzmachine/app/database"
)

type fakeEvents struct {
	events []database.DiagnosticEvent
	since  time.Time
	types  []string
	err    error
}

func (f *fakeEvents) EventsSince(since time.Time, eventTypes ...string) ([]database.DiagnosticEvent, error) {
	f.since = since
	f.types = eventTypes
	return f.events, f.err
}

type fakeItems struct {
	categories map[string]bool
	days       []string
}

func (f *fakeItems) HasItemsForCategory(day, category string) (bool, error) {
	f.days = append(f.days, day)
	return f.categories[category], nil
}

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)

func newTestDeriver(events []database.DiagnosticEvent, categories map[string]bool) (*Deriver, *fakeEvents, *fakeItems) {
	ev := &fakeEvents{events: events}
	it := &fakeItems{categories: categories}
	d := NewDeriver(ev, it)
	d.now = func() time.Time { return testNow }
	return d, ev, it
}

func event(minutesAgo int, eventType string, severity database.Severity, message string) database.DiagnosticEvent {
	return database.DiagnosticEvent{
		Timestamp: testNow.Add(-time.Duration(minutesAgo) * time.Minute),
		EventType: eventType,
		Severity:  severity,
		Message:   message,
	}
}

func TestDeriveSuccessSettlesStatus(t *testing.T) {
	d, ev, _ := newTestDeriver([]database.DiagnosticEvent{
		event(1, database.EventCrawlSuccess, database.SeverityInfo, "Fetched 5 items from hackernews"),
		event(5, database.EventInsertError, database.SeverityError, "Insert failed for hackernews item"),
	}, nil)

	statuses, err := d.Derive([]KnownProvider{{Name: "hackernews", Category: "news"}})
	if err != nil {
		t.Fatal(err)
	}

	s := statuses[0]
	if s.LastFetchStatus != StatusOK {
		t.Errorf("Expected status ok, got %s", s.LastFetchStatus)
	}
	if s.RecentErrorCount != 0 {
		t.Errorf("Expected errors after the success to be ignored, got %d", s.RecentErrorCount)
	}
	if s.LastFetchTimestamp != "2025-03-14T11:59:00" {
		t.Errorf("Expected timestamp of newest match, got %s", s.LastFetchTimestamp)
	}
	if !ev.since.Equal(testNow.Add(-24 * time.Hour)) {
		t.Errorf("Expected 24h window, got since %v", ev.since)
	}
	if len(ev.types) != len(scannedEvents) {
		t.Errorf("Expected %d event types, got %d", len(scannedEvents), len(ev.types))
	}
}

func TestDeriveErrorsBeforeSuccess(t *testing.T) {
	d, _, _ := newTestDeriver([]database.DiagnosticEvent{
		event(1, database.EventInsertError, database.SeverityError, "Insert failed for JokeAPI item"),
		event(2, database.EventInsertError, database.SeverityError, "Insert failed for jokeapi item"),
		event(3, database.EventCrawlSuccess, database.SeverityInfo, "Fetched 3 items from jokeapi"),
	}, nil)

	statuses, err := d.Derive([]KnownProvider{{Name: "jokeapi", Category: "joke"}})
	if err != nil {
		t.Fatal(err)
	}

	s := statuses[0]
	if s.LastFetchStatus != StatusOK {
		t.Errorf("Expected a later success to override, got %s", s.LastFetchStatus)
	}
	if s.RecentErrorCount != 2 {
		t.Errorf("Expected 2 errors counted case-insensitively, got %d", s.RecentErrorCount)
	}
}

func TestDeriveErrorOnly(t *testing.T) {
	d, _, _ := newTestDeriver([]database.DiagnosticEvent{
		event(1, database.EventInsertError, database.SeverityError, "Insert failed for bbc-news item"),
		event(2, database.EventCrawlError, database.SeverityWarn, "Crawl of bbc-news failed"),
	}, map[string]bool{"news": true})

	statuses, err := d.Derive([]KnownProvider{{Name: "bbc-news", Category: "news"}})
	if err != nil {
		t.Fatal(err)
	}

	if statuses[0].LastFetchStatus != StatusError {
		t.Errorf("Expected status error, got %s", statuses[0].LastFetchStatus)
	}
	if statuses[0].RecentErrorCount != 1 {
		t.Errorf("Expected warn events not to count, got %d", statuses[0].RecentErrorCount)
	}
}

func TestDeriveFallsBackToItems(t *testing.T) {
	d, _, items := newTestDeriver(nil, map[string]bool{"meme": true})

	statuses, err := d.Derive([]KnownProvider{
		{Name: "reddit-memes", Category: "meme"},
		{Name: "reddit-videos", Category: "video"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if statuses[0].LastFetchStatus != StatusOK || statuses[0].LastFetchTimestamp != "2025-03-14" {
		t.Errorf("Expected ok with today's date, got %s at %s", statuses[0].LastFetchStatus, statuses[0].LastFetchTimestamp)
	}
	if statuses[1].LastFetchStatus != StatusUnknown {
		t.Errorf("Expected unknown, got %s", statuses[1].LastFetchStatus)
	}
	if len(items.days) != 2 || items.days[0] != "2025-03-14" {
		t.Errorf("Expected item checks for today, got %v", items.days)
	}
}

func TestDeriveSubstringAttribution(t *testing.T) {
	d, _, _ := newTestDeriver([]database.DiagnosticEvent{
		event(1, database.EventCrawlSuccess, database.SeverityInfo, "Fetched 4 items from google-news"),
	}, nil)

	statuses, err := d.Derive([]KnownProvider{{Name: "news", Category: "news"}})
	if err != nil {
		t.Fatal(err)
	}

	if statuses[0].LastFetchStatus != StatusOK {
		t.Errorf("Expected substring match to attribute the event, got %s", statuses[0].LastFetchStatus)
	}
}

func TestDeriveEventSourceError(t *testing.T) {
	d, ev, _ := newTestDeriver(nil, nil)
	ev.err = errors.New("disk gone")

	if _, err := d.Derive([]KnownProvider{{Name: "x", Category: "meme"}}); err == nil {
		t.Error("Expected error from event source")
	}
}
