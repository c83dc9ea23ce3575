package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
)

const defaultDadJokeURL = "https://icanhazdadjoke.com"

var defaultDadJokeTopics = []string{"work", "computer", "office", "coffee", "cat", "dog", "food", "money"}

// DadJokeProvider searches icanhazdadjoke for a random topic.
type DadJokeProvider struct {
	base
}

type dadJoke struct {
	ID   string `json:"id"`
	Joke string `json:"joke"`
}

type dadJokeSearch struct {
	Results []dadJoke `json:"results"`
}

func (p *DadJokeProvider) Fetch(ctx context.Context, client *http.Client) ([]FetchedItem, error) {
	baseURL := strings.TrimSuffix(p.config.URL, "/")
	if baseURL == "" {
		baseURL = defaultDadJokeURL
	}

	topics := p.config.Topics
	if len(topics) == 0 {
		topics = defaultDadJokeTopics
	}
	topic := topics[rand.IntN(len(topics))]

	searchURL := fmt.Sprintf("%s/search?term=%s&limit=%d", baseURL, url.QueryEscape(topic), max(p.config.Settings.MaxItems, 5))
	data, err := p.get(ctx, client, searchURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to search jokes about %s: %w", topic, err)
	}

	var search dadJokeSearch
	if err := json.Unmarshal(data, &search); err != nil {
		return nil, fmt.Errorf("failed to parse joke search: %w", err)
	}

	items := make([]FetchedItem, 0, len(search.Results))
	for _, joke := range search.Results {
		if joke.ID == "" || joke.Joke == "" {
			continue
		}
		items = append(items, FetchedItem{
			Title: joke.Joke,
			URL:   fmt.Sprintf("%s/j/%s", baseURL, joke.ID),
		})
	}

	return p.finish(ctx, client, items), nil
}
