package station

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"
)

const (
	userAgent       = "radioplex/1.0 (+https://github.com/grrywlsn/radioplex)"
	maxPageBytes    = 4 << 20
	DefaultTimeout  = 30 * time.Second
	browserLoadWait = 5000 // virtual time budget in ms for client-side rendering
)

// Fetcher retrieves the body of a station page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches pages with a plain GET request.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// BrowserFetcher renders the page with a headless Chromium-family browser and
// returns the serialized DOM. Used when a station only fills its list in
// client-side JavaScript.
type BrowserFetcher struct {
	Binary string
}

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.Binary,
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--no-first-run",
		"--disable-extensions",
		fmt.Sprintf("--virtual-time-budget=%d", browserLoadWait),
		"--user-agent="+userAgent,
		"--dump-dom",
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("browser %s failed: %w: %s", f.Binary, err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("browser %s returned an empty document", f.Binary)
	}
	return stdout.Bytes(), nil
}

// NewFetcher returns a BrowserFetcher when a browser binary is configured and
// an HTTPFetcher otherwise.
func NewFetcher(browserBinary string, timeout time.Duration) Fetcher {
	if browserBinary != "" {
		return &BrowserFetcher{Binary: browserBinary}
	}
	return NewHTTPFetcher(timeout)
}
