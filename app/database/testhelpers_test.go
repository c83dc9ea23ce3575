package database

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, _, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

var testDay = time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

func testItem(n int, category string, fetchedAt time.Time) Item {
	url := fmt.Sprintf("https://example.com/%s/%d", category, n)
	return Item{
		ID:          fmt.Sprintf("id-%s-%d", category, n),
		Source:      "test",
		Category:    category,
		Title:       fmt.Sprintf("%s %d", category, n),
		URL:         url,
		Description: "some description",
		FetchedAt:   fetchedAt,
		SessionDate: SessionDate(fetchedAt),
	}
}
