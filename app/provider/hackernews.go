package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const defaultHackerNewsURL = "https://hacker-news.firebaseio.com/v0"

// HackerNewsProvider reads the current top stories.
type HackerNewsProvider struct {
	base
}

type hackerNewsItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	By    string `json:"by"`
	Score int    `json:"score"`
	Type  string `json:"type"`
}

func (p *HackerNewsProvider) Fetch(ctx context.Context, client *http.Client) ([]FetchedItem, error) {
	baseURL := strings.TrimSuffix(p.config.URL, "/")
	if baseURL == "" {
		baseURL = defaultHackerNewsURL
	}

	data, err := p.get(ctx, client, baseURL+"/topstories.json", "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top stories: %w", err)
	}

	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse top stories: %w", err)
	}

	limit := min(len(ids), p.config.Settings.MaxItems)
	items := make([]FetchedItem, 0, limit)
	for _, id := range ids[:limit] {
		story, err := p.fetchStory(ctx, client, baseURL, id)
		if err != nil {
			slog.Debug("Failed to fetch story", "provider", p.Name(), "id", id, "error", err)
			continue
		}
		if story.Title == "" {
			continue
		}

		link := story.URL
		if link == "" {
			link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		}

		items = append(items, FetchedItem{
			Title:       story.Title,
			URL:         link,
			Description: fmt.Sprintf("%d points by %s", story.Score, story.By),
		})
	}

	return p.finish(ctx, client, items), nil
}

func (p *HackerNewsProvider) fetchStory(ctx context.Context, client *http.Client, baseURL string, id int) (*hackerNewsItem, error) {
	data, err := p.get(ctx, client, fmt.Sprintf("%s/item/%d.json", baseURL, id), "application/json")
	if err != nil {
		return nil, err
	}

	var story hackerNewsItem
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, fmt.Errorf("failed to parse story: %w", err)
	}

	return &story, nil
}
