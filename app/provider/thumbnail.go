package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

const maxThumbnailBytes = 512 << 10

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// isImageURL reports whether rawURL points straight at an image file.
func isImageURL(rawURL string) bool {
	_, ok := imageExtensions[imageExtension(rawURL)]
	return ok
}

func imageExtension(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(path.Ext(p))
}

// inlineThumbnail downloads the image at url and encodes it as a data URL.
func (b base) inlineThumbnail(ctx context.Context, client *http.Client, url string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Referer", "https://www.reddit.com/")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read thumbnail: %w", err)
	}
	if len(data) > maxThumbnailBytes {
		return "", fmt.Errorf("thumbnail larger than %d bytes", maxThumbnailBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = imageExtensions[imageExtension(url)]
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
