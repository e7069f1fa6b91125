// Package fetch downloads pages on behalf of the crawler. It sends
// browser-like headers, follows redirects, decodes whatever charset the
// server answers with and retries transient failures.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/newsherd/newsherd/internal/retry"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

// maxBodySize caps a single page download at 10 MB.
const maxBodySize = 10 << 20

// Page is a downloaded document.
type Page struct {
	// Body is the decoded HTML, converted to UTF-8.
	Body string
	// FinalURL is the URL after redirects.
	FinalURL string
}

// Fetcher downloads pages with a shared HTTP client.
type Fetcher struct {
	client *http.Client
	retry  retry.Config
}

// New builds a fetcher. A zero timeout falls back to 15 seconds.
func New(timeout time.Duration, retryConfig retry.Config) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				slog.Debug("following redirect", "from", via[0].URL, "to", req.URL)
				return nil
			},
		},
		retry: retryConfig,
	}
}

// Get downloads a page, retrying transient failures.
func (f *Fetcher) Get(ctx context.Context, url string) (*Page, error) {
	var page *Page
	err := retry.Do(ctx, f.retry, func() error {
		var err error
		page, err = f.get(ctx, url)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return page, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	// Decode the body to UTF-8 using the response headers and any meta
	// charset declarations.
	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("detecting charset: %w", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Page{
		Body:     string(body),
		FinalURL: resp.Request.URL.String(),
	}, nil
}
