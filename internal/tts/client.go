// Package tts turns script text into an audio file via the ElevenLabs
// text-to-speech API. The service is treated as an opaque remote call:
// bounded retries, a rate-limit backoff branch, and a minimum output size
// guard against nominally-successful empty responses.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"clipsmith/internal/logging"
	"clipsmith/internal/retry"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// ErrNotConfigured is returned when no API key is set. The script branch is
// disabled but URL/base64 audio sources still work.
var ErrNotConfigured = errors.New("tts: no API key configured")

type Client struct {
	apiKey    string
	voiceID   string
	baseURL   string
	maxChars  int
	minBytes  int64
	attempts  int
	baseDelay time.Duration
	http      *http.Client
	log       *logging.Logger
}

func New(apiKey, voiceID string, maxChars int, minBytes int64, attempts int, baseDelay, timeout time.Duration, log *logging.Logger) *Client {
	return &Client{
		apiKey:    apiKey,
		voiceID:   voiceID,
		baseURL:   defaultBaseURL,
		maxChars:  maxChars,
		minBytes:  minBytes,
		attempts:  attempts,
		baseDelay: baseDelay,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) Configured() bool { return c.apiKey != "" }

// Synthesize renders script as speech into dest. The script is truncated to
// the service's character ceiling before sending. An output below the
// minimum byte threshold counts as a failed attempt even on HTTP 200.
func (c *Client) Synthesize(ctx context.Context, script, dest string) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	if len(script) > c.maxChars {
		c.log.Warnf("tts: script truncated from %d to %d chars", len(script), c.maxChars)
		script = script[:c.maxChars]
	}
	return retry.Do(ctx, c.attempts, c.baseDelay, func() error {
		if err := c.synthesizeOnce(ctx, script, dest); err != nil {
			c.log.Warnf("tts: attempt failed: %v", err)
			return err
		}
		return nil
	})
}

func (c *Client) synthesizeOnce(ctx context.Context, script, dest string) error {
	body, err := json.Marshal(map[string]any{
		"text":     script,
		"model_id": "eleven_multilingual_v2",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &retry.RateLimited{Err: errors.New("tts: http 429")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("tts: http %d: %s", resp.StatusCode, errorDetail(resp.Body))
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
		return fmt.Errorf("tts: stream to %s: %w", dest, err)
	}
	if written < c.minBytes {
		os.Remove(dest)
		return fmt.Errorf("tts: response too small (%d bytes, want >= %d)", written, c.minBytes)
	}
	c.log.Infof("tts: synthesized %d chars to %s (%d bytes)", len(script), dest, written)
	return nil
}

// errorDetail extracts a short human-readable message from the provider's
// JSON error body, capped to keep diagnostics bounded.
func errorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}
	if msg := gjson.GetBytes(raw, "detail.message"); msg.Exists() {
		return msg.String()
	}
	if status := gjson.GetBytes(raw, "detail.status"); status.Exists() {
		return status.String()
	}
	return string(raw)
}
