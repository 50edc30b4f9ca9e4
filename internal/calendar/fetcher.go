// Package calendar fetches and parses third-party availability feeds and
// decides, per platform, which events actually block the property.
package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFeedBytes caps a single feed download. Rental platform feeds are a few
// kilobytes; anything larger is a broken or hostile endpoint.
const maxFeedBytes = 5 << 20

// Fetcher downloads a raw calendar feed. No retries here: a failed fetch is
// retried by the next scheduled sync run.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar, text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return "", fmt.Errorf("read feed body: %w", err)
	}

	return string(body), nil
}
