package provider

import (
	"strings"
	"testing"
)

func TestContentExtractor_ValidHTML(t *testing.T) {
	extractor := NewContentExtractor()

	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>Test Article</title>
		<meta property="og:image" content="https://example.com/lead.jpg">
	</head>
	<body>
		<nav>Navigation</nav>
		<article>
			<h1>Main Article Title</h1>
			<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
			<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
			<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
		</article>
		<footer><p>Copyright 2024</p></footer>
	</body>
	</html>
	`

	result, err := extractor.Run([]byte(htmlContent), "https://example.com/article")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Excerpt == "" {
		t.Error("Expected non-empty excerpt")
	}
	if !strings.Contains(result.Excerpt, "main content") {
		t.Errorf("Expected excerpt from the article body, got: %s", result.Excerpt)
	}
	if result.ImageURL != "https://example.com/lead.jpg" {
		t.Errorf("Expected lead image from og:image, got '%s'", result.ImageURL)
	}
}

func TestContentExtractor_EmptyInput(t *testing.T) {
	extractor := NewContentExtractor()

	if _, err := extractor.Run(nil, "https://example.com"); err == nil {
		t.Error("Expected error for empty input")
	}
}
