package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// WebFetcher performs the minimal HTTP lookups the slash commands and
// web_search tool need. It is deliberately not a browser: no JavaScript,
// no rendering, just a bounded GET and crude tag stripping.
type WebFetcher interface {
	Browse(ctx context.Context, rawURL string) (string, error)
	Search(ctx context.Context, query string) (string, error)
}

// httpWebFetcher implements WebFetcher over net/http. No HTML-parsing
// library appears anywhere in the dependency pack, so tag stripping here
// is a justified stdlib regexp pass rather than a full DOM parse.
type httpWebFetcher struct {
	client        *http.Client
	searchBaseURL string // e.g. https://html.duckduckgo.com/html/?q=
}

// NewHTTPWebFetcher constructs the default WebFetcher.
func NewHTTPWebFetcher(searchBaseURL string) WebFetcher {
	if searchBaseURL == "" {
		searchBaseURL = "https://html.duckduckgo.com/html/?q="
	}
	return &httpWebFetcher{
		client:        &http.Client{Timeout: 15 * time.Second},
		searchBaseURL: searchBaseURL,
	}
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)
var whitespacePattern = regexp.MustCompile(`[ \t]+`)

func stripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	var kept []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func (f *httpWebFetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "hive-agent/1.0 (+personal assistant fetch)")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return "", err
	}
	return stripTags(string(body)), nil
}

func (f *httpWebFetcher) Browse(ctx context.Context, rawURL string) (string, error) {
	text, err := f.get(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("unable to browse %s: %w", rawURL, err)
	}
	if len(text) > 8000 {
		text = text[:8000]
	}
	return text, nil
}

func (f *httpWebFetcher) Search(ctx context.Context, query string) (string, error) {
	text, err := f.get(ctx, f.searchBaseURL+url.QueryEscape(query))
	if err != nil {
		return "", fmt.Errorf("unable to search: %w", err)
	}
	if len(text) > 6000 {
		text = text[:6000]
	}
	return text, nil
}
