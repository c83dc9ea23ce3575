package tasks

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/provider"
)

type testStores struct {
	db    *database.DB
	items *database.ItemStore
	diags *database.DiagnosticStore
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()

	db, _, err := database.OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &testStores{
		db:    db,
		items: database.NewItemStore(db),
		diags: database.NewDiagnosticStore(db),
	}
}

func (s *testStores) eventsOfType(t *testing.T, eventType string) []database.DiagnosticEvent {
	t.Helper()

	events, err := s.diags.Recent(1000)
	if err != nil {
		t.Fatal(err)
	}

	var matched []database.DiagnosticEvent
	for _, e := range events {
		if e.EventType == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type fakeProvider struct {
	name     string
	category string
	items    []provider.FetchedItem
	err      error
	calls    atomic.Int32
	fetched  chan string
}

func newFakeProvider(name, category string, count int) *fakeProvider {
	p := &fakeProvider{name: name, category: category}
	for i := 0; i < count; i++ {
		p.items = append(p.items, provider.FetchedItem{
			Source:   name,
			Category: category,
			Title:    fmt.Sprintf("%s item %d", name, i),
			URL:      fmt.Sprintf("https://%s.example.com/%d", name, i),
		})
	}
	return p
}

func (p *fakeProvider) Name() string     { return p.name }
func (p *fakeProvider) Category() string { return p.category }

func (p *fakeProvider) Fetch(ctx context.Context, client *http.Client) ([]provider.FetchedItem, error) {
	p.calls.Add(1)
	if p.fetched != nil {
		p.fetched <- p.name
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.items, nil
}

// failingItemRepo rejects inserts for one URL and delegates the rest.
type failingItemRepo struct {
	database.ItemRepository
	failURL string
}

func (r *failingItemRepo) Insert(item database.Item) (bool, error) {
	if item.URL == r.failURL {
		return false, fmt.Errorf("disk full")
	}
	return r.ItemRepository.Insert(item)
}
