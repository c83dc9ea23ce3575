package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
)

const defaultRedditURL = "https://www.reddit.com"

// RedditProvider reads the hot listing of one subreddit per fetch, picked at
// random from the configured list.
type RedditProvider struct {
	base
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Selftext  string `json:"selftext"`
	PostHint  string `json:"post_hint"`
	Over18    bool   `json:"over_18"`
	Stickied  bool   `json:"stickied"`
	IsVideo   bool   `json:"is_video"`
	Preview   struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

func (p *RedditProvider) Fetch(ctx context.Context, client *http.Client) ([]FetchedItem, error) {
	if len(p.config.Subreddits) == 0 {
		return nil, fmt.Errorf("no subreddits configured for %s", p.Name())
	}

	baseURL := strings.TrimSuffix(p.config.URL, "/")
	if baseURL == "" {
		baseURL = defaultRedditURL
	}

	subreddit := p.config.Subreddits[rand.IntN(len(p.config.Subreddits))]
	listingURL := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", baseURL, url.PathEscape(subreddit), max(p.config.Settings.MaxItems*3, 10))

	data, err := p.get(ctx, client, listingURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s: %w", subreddit, err)
	}

	var listing redditListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse r/%s listing: %w", subreddit, err)
	}

	var items []FetchedItem
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Over18 || post.Stickied || post.Permalink == "" {
			continue
		}
		if p.config.Settings.ImagesOnly && post.PostHint != "image" && !isImageURL(post.URL) {
			continue
		}
		if p.config.Settings.VideosOnly && !post.IsVideo && !strings.Contains(post.URL, "youtu") {
			continue
		}

		items = append(items, FetchedItem{
			Title:        post.Title,
			URL:          "https://reddit.com" + post.Permalink,
			ThumbnailURL: redditThumbnail(post),
			Description:  post.Selftext,
		})
	}

	return p.finish(ctx, client, items), nil
}

// redditThumbnail prefers the linked image itself, then the listing
// thumbnail, then the preview source.
func redditThumbnail(post redditPost) string {
	if post.PostHint == "image" || isImageURL(post.URL) {
		return post.URL
	}
	if strings.HasPrefix(post.Thumbnail, "http") {
		return post.Thumbnail
	}
	if len(post.Preview.Images) > 0 && post.Preview.Images[0].Source.URL != "" {
		return html.UnescapeString(post.Preview.Images[0].Source.URL)
	}
	return ""
}
