package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	fetchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects   = 5
)

// PageFetcher downloads a URL and extracts its readable text. Unlike the
// search tool it returns real errors: its callers surface them to HTTP
// clients, not to the model.
type PageFetcher struct {
	maxChars   int
	httpClient *http.Client
}

// NewPageFetcher creates a PageFetcher. maxChars defaults to 50000.
func NewPageFetcher(maxChars int) *PageFetcher {
	if maxChars <= 0 {
		maxChars = 50000
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &PageFetcher{maxChars: maxChars, httpClient: client}
}

// Fetch returns the readable text of the page at rawURL.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := validateURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", rawURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	if text == "" {
		return "", fmt.Errorf("extract %s: no readable content", rawURL)
	}
	return text, nil
}

// validateURL checks that rawURL is http(s) with a valid domain.
func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing domain in URL")
	}
	return u, nil
}
