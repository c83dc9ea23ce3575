package provider

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS or Atom document into fetched items. Descriptions are
// left as HTML; the provider strips and truncates them.
func (p *Parser) Run(data []byte) ([]FetchedItem, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]FetchedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, p.normalizeItem(item))
	}

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) FetchedItem {
	return FetchedItem{
		Title:        strings.TrimSpace(item.Title),
		URL:          strings.TrimSpace(cmp.Or(item.Link, item.GUID)),
		Description:  cmp.Or(item.Description, item.Content),
		ThumbnailURL: p.extractThumbnail(item),
	}
}

func (p *Parser) extractThumbnail(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"thumbnail", "content"} {
			for _, ext := range media[name] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}

	return ""
}
