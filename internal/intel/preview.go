package intel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Preview fetches a URL and extracts its title, so the add-source flow
// can confirm what is about to be ingested. It is best-effort: callers
// treat any error as "no preview available".
func (c *Client) Preview(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "intelboard/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching page: status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting title: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		return "", fmt.Errorf("no title found")
	}
	return title, nil
}
