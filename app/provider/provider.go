package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider fetches a batch of items from one external source. Fetch must
// not touch the store; the caller inserts what it returns.
type Provider interface {
	Name() string
	Category() string
	Fetch(ctx context.Context, client *http.Client) ([]FetchedItem, error)
}

// Build constructs the provider described by config.
func Build(config *Config, userAgent string) (Provider, error) {
	b := newBase(config, userAgent)

	switch config.Kind {
	case KindReddit:
		return &RedditProvider{base: b}, nil
	case KindRSS:
		return &RSSProvider{base: b, parser: NewParser()}, nil
	case KindDadJoke:
		return &DadJokeProvider{base: b}, nil
	case KindHackerNews:
		return &HackerNewsProvider{base: b}, nil
	case KindJokeAPI:
		return &JokeAPIProvider{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q for %s", config.Kind, config.Name)
	}
}

// BuildAll constructs providers for configs, preserving their order.
func BuildAll(configs []*Config, userAgent string) ([]Provider, error) {
	providers := make([]Provider, 0, len(configs))
	for _, config := range configs {
		p, err := Build(config, userAgent)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// StableID derives the item identifier from its canonical URL: the first
// 16 bytes of the SHA-256 digest, hex encoded.
func StableID(rawURL string) string {
	hash := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(hash[:16])
}

// CanonicalURL lowercases scheme and host and drops the fragment.
func CanonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// base carries what every provider kind shares: its configuration and the
// post-processing applied to raw results.
type base struct {
	config    *Config
	userAgent string
	filterer  *Filterer
	extractor *ContentExtractor
}

func newBase(config *Config, userAgent string) base {
	return base{
		config:    config,
		userAgent: userAgent,
		filterer:  NewFilterer(),
		extractor: NewContentExtractor(),
	}
}

func (b base) Name() string {
	return b.config.Name
}

func (b base) Category() string {
	return b.config.Category
}

func (b base) timeout() time.Duration {
	return time.Duration(b.config.Settings.Timeout) * time.Second
}

// finish filters, truncates and enriches raw items.
func (b base) finish(ctx context.Context, client *http.Client, raw []FetchedItem) []FetchedItem {
	items := make([]FetchedItem, 0, len(raw))
	for _, item := range b.filterer.Run(raw, b.config) {
		if item.Title == "" || item.URL == "" {
			continue
		}

		item.Source = b.config.SourceName()
		item.Category = b.config.Category
		item.Title = StripHTML(item.Title)
		item.Description = Truncate(StripHTML(item.Description), b.config.Settings.DescriptionLength)
		items = append(items, item)

		if len(items) >= b.config.Settings.MaxItems {
			break
		}
	}

	if b.config.Settings.ExtractContent {
		for i := range items {
			if items[i].Description != "" {
				continue
			}
			b.enrich(ctx, client, &items[i])
		}
	}

	if b.config.Settings.InlineThumbnails {
		for i := range items {
			if items[i].ThumbnailURL == "" || items[i].ThumbnailData != "" {
				continue
			}
			data, err := b.inlineThumbnail(ctx, client, items[i].ThumbnailURL)
			if err != nil {
				slog.Debug("Thumbnail inlining failed", "provider", b.Name(), "url", items[i].ThumbnailURL, "error", err)
				continue
			}
			items[i].ThumbnailData = data
		}
	}

	return items
}

func (b base) enrich(ctx context.Context, client *http.Client, item *FetchedItem) {
	data, err := b.get(ctx, client, item.URL, "text/html")
	if err != nil {
		slog.Debug("Content extraction fetch failed", "provider", b.Name(), "url", item.URL, "error", err)
		return
	}

	extract, err := b.extractor.Run(data, item.URL)
	if err != nil {
		slog.Debug("Content extraction failed", "provider", b.Name(), "url", item.URL, "error", err)
		return
	}

	item.Description = Truncate(StripHTML(extract.Excerpt), b.config.Settings.DescriptionLength)
	if item.ThumbnailURL == "" {
		item.ThumbnailURL = extract.ImageURL
	}
}

func (b base) get(ctx context.Context, client *http.Client, url, accept string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", b.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

const maxResponseBytes = 10 << 20
