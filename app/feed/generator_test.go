package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/cazzmachine/app/database"
)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator("https://cazz.example.com/", "8080", "1.2.3")

	fetchedAt := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	items := []database.Item{
		{
			ID:           "a1b2",
			Source:       "reddit-memes",
			Category:     "meme",
			Title:        "Cat & dog",
			URL:          "https://example.com/cat",
			ThumbnailURL: "https://i.example.com/cat.jpg?width=640",
			FetchedAt:    fetchedAt,
		},
		{
			ID:          "c3d4",
			Source:      "bbc-news",
			Category:    "news",
			Title:       "Nothing happened",
			URL:         "https://example.com/news",
			Description: "Still nothing",
			FetchedAt:   fetchedAt,
		},
	}

	rss, err := generator.Run("2025-03-14", items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("RSS should contain XML declaration")
	}
	if !strings.Contains(rss, `<atom:link href="https://cazz.example.com/feed.xml" rel="self"`) {
		t.Error("RSS should contain self link built from base URL")
	}
	if !strings.Contains(rss, "<generator>cazzmachine/1.2.3</generator>") {
		t.Error("RSS should contain generator with version")
	}
	if !strings.Contains(rss, "<title>Cat &amp; dog</title>") {
		t.Error("Item title should be escaped")
	}
	if !strings.Contains(rss, `<guid isPermaLink="false">a1b2</guid>`) {
		t.Error("Item id should be used as guid")
	}
	if !strings.Contains(rss, "<description>Cat &amp; dog</description>") {
		t.Error("Missing description should fall back to the title")
	}
	if !strings.Contains(rss, `<enclosure url="https://i.example.com/cat.jpg?width=640" length="0" type="image/jpeg" />`) {
		t.Error("Image thumbnail should become an enclosure")
	}
	if strings.Count(rss, "<enclosure") != 1 {
		t.Errorf("Expected exactly one enclosure, got %d", strings.Count(rss, "<enclosure"))
	}
	if !strings.Contains(rss, "<category>news</category>") {
		t.Error("Item category should be present")
	}
	if !strings.Contains(rss, "<pubDate>"+fetchedAt.Format(time.RFC1123Z)+"</pubDate>") {
		t.Error("pubDate should be the fetch time")
	}
}

func TestGenerateRSSWithoutBaseURL(t *testing.T) {
	generator := NewGenerator("", "9090", "dev")

	rss, err := generator.Run("2025-03-14", nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, `href="http://localhost:9090/feed.xml"`) {
		t.Error("Self link should fall back to localhost and port")
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Empty day should produce no items")
	}
}

func TestImageType(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://i.redd.it/x.png", "image/png"},
		{"https://i.redd.it/x.GIF#frag", "image/gif"},
		{"https://example.com/page", ""},
		{"data:image/png;base64,iVBORw==", ""},
	}

	for _, tt := range tests {
		if got := imageType(tt.url); got != tt.expected {
			t.Errorf("imageType(%q): expected %q, got %q", tt.url, tt.expected, got)
		}
	}
}
