package provider

import (
	"context"
	"fmt"
	"net/http"
)

// RSSProvider reads any RSS or Atom feed.
type RSSProvider struct {
	base
	parser *Parser
}

func (p *RSSProvider) Fetch(ctx context.Context, client *http.Client) ([]FetchedItem, error) {
	data, err := p.get(ctx, client, p.config.URL, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	items, err := p.parser.Run(data)
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, client, items), nil
}
