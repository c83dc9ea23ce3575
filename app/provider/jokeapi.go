package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultJokeAPIURL = "https://v2.jokeapi.dev"

// JokeAPIProvider reads single-part jokes from JokeAPI with the unsafe
// categories blacklisted.
type JokeAPIProvider struct {
	base
}

type jokeAPIResponse struct {
	Error bool `json:"error"`
	Jokes []struct {
		ID       int    `json:"id"`
		Joke     string `json:"joke"`
		Category string `json:"category"`
	} `json:"jokes"`
}

func (p *JokeAPIProvider) Fetch(ctx context.Context, client *http.Client) ([]FetchedItem, error) {
	baseURL := strings.TrimSuffix(p.config.URL, "/")
	if baseURL == "" {
		baseURL = defaultJokeAPIURL
	}

	jokesURL := fmt.Sprintf("%s/joke/Any?type=single&amount=%d&blacklistFlags=nsfw,religious,political,racist,sexist,explicit",
		baseURL, min(max(p.config.Settings.MaxItems, 1), 10))
	data, err := p.get(ctx, client, jokesURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jokes: %w", err)
	}

	var resp jokeAPIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse jokes: %w", err)
	}
	if resp.Error {
		return nil, fmt.Errorf("joke api returned an error")
	}

	items := make([]FetchedItem, 0, len(resp.Jokes))
	for _, joke := range resp.Jokes {
		items = append(items, FetchedItem{
			Title:       joke.Joke,
			URL:         fmt.Sprintf("%s/joke/Any?idRange=%d", baseURL, joke.ID),
			Description: joke.Category,
		})
	}

	return p.finish(ctx, client, items), nil
}
