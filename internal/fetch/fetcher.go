// Package fetch downloads remote media to local files with streaming writes
// and bounded retries. Bodies are never buffered whole in memory: clips can
// be tens of megabytes and the host is memory-constrained.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"clipsmith/internal/logging"
	"clipsmith/internal/retry"
)

type Fetcher struct {
	client    *http.Client
	attempts  int
	baseDelay time.Duration
	log       *logging.Logger
}

func New(timeout time.Duration, attempts int, baseDelay time.Duration, log *logging.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		attempts:  attempts,
		baseDelay: baseDelay,
		log:       log,
	}
}

// Fetch downloads url to dest, overwriting any previous content. Success
// requires a 2xx response and a non-empty file on disk. A failed attempt
// leaves no partial file behind; each retry starts from scratch.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	return retry.Do(ctx, f.attempts, f.baseDelay, func() error {
		if err := f.fetchOnce(ctx, url, dest); err != nil {
			f.log.Warnf("fetch: attempt failed for %s: %v", url, err)
			return err
		}
		return nil
	})
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &retry.RateLimited{Err: fmt.Errorf("http 429 for %s", url)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http %d for %s", resp.StatusCode, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("stream to %s: %w", dest, err)
	}
	if written == 0 {
		os.Remove(dest)
		return fmt.Errorf("empty response body for %s", url)
	}
	f.log.Infof("fetch: downloaded %s (%d bytes)", url, written)
	return nil
}
