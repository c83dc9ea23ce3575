package provider

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-shiori/go-readability"
)

type Extract struct {
	Title    string
	Excerpt  string
	ImageURL string
}

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Run pulls a short excerpt and a lead image out of an article page.
func (e *ContentExtractor) Run(data []byte, pageURL string) (*Extract, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	excerpt := article.Excerpt
	if excerpt == "" {
		excerpt = article.TextContent
	}
	if excerpt == "" {
		return nil, fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"excerpt_length", len(excerpt))

	return &Extract{
		Title:    article.Title,
		Excerpt:  excerpt,
		ImageURL: article.Image,
	}, nil
}
