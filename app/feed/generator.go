package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/lysyi3m/cazzmachine/app/database"
)

// Generator renders consumed items as an RSS 2.0 channel.
type Generator struct {
	baseURL string
	port    string
	version string
}

func NewGenerator(baseURL, port, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		port:    port,
		version: version,
	}
}

func (g *Generator) Run(day string, items []database.Item) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "cazzmachine", 4)
	g.writeElement(&buf, "link", g.siteURL(), 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Everything doomscrolled on your behalf on %s", day), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.siteURL()+"/feed.xml")))

	lastBuildDate := time.Now().In(time.Local)
	if len(items) > 0 {
		lastBuildDate = items[0].FetchedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("cazzmachine/%s", g.version), 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) siteURL() string {
	if g.baseURL != "" {
		return g.baseURL
	}
	return fmt.Sprintf("http://localhost:%s", g.port)
}

func (g *Generator) writeItem(buf *bytes.Buffer, item database.Item) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(item.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.URL, 6)
	g.writeElement(buf, "description", cmp.Or(item.Description, item.Title), 6)
	g.writeElement(buf, "pubDate", item.FetchedAt.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", item.Category, 6)
	g.writeElement(buf, "source", item.Source, 6)

	// Inlined thumbnails are data URLs and cannot be enclosures.
	if item.ThumbnailURL != "" {
		if mimeType := imageType(item.ThumbnailURL); mimeType != "" {
			buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
				html.EscapeString(item.ThumbnailURL), mimeType))
		}
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func imageType(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}

	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}

	switch strings.ToLower(path.Ext(rawURL)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
