package stashapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// maxAttempts bounds retries of a single page fetch.
	maxAttempts = 10

	// backoffBase is the first retry delay; it doubles per attempt.
	backoffBase = time.Second
)

// Client fetches pages from the public stash tab feed.
type Client struct {
	root     string
	client   *http.Client
	rate     time.Duration
	lastTime time.Time
	log      zerolog.Logger
}

// NewClient creates a new feed client. rate is the minimum number of seconds
// between requests; the upstream rate limits anything faster than ~1.1s.
func NewClient(root string, rate float64, log zerolog.Logger) *Client {
	if rate <= 0 {
		rate = 1.1
	}
	return &Client{
		root:   root,
		client: &http.Client{Timeout: 60 * time.Second},
		rate:   time.Duration(rate * float64(time.Second)),
		log:    log.With().Str("client", "stash-feed").Logger(),
	}
}

// Next fetches the page at cursor (empty for the start of the feed) and
// returns the decoded envelope. Server errors are retried with exponential
// backoff; client errors and malformed envelopes are not.
func (c *Client) Next(ctx context.Context, cursor string) (*Envelope, error) {
	if err := c.rateWait(ctx); err != nil {
		return nil, err
	}

	url := c.root
	if cursor != "" {
		url += "?id=" + cursor
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		envelope, retryable, err := c.fetch(ctx, url)
		if err == nil {
			return envelope, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}

		delay := backoffBase << (attempt - 1)
		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Feed request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("feed request failed after %d attempts: %w", maxAttempts, lastErr)
}

// fetch performs a single request. The second return value reports whether
// the failure is worth retrying (network errors and 5xx responses).
func (c *Client) fetch(ctx context.Context, url string) (*Envelope, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build feed request: %w", err)
	}

	c.log.Debug().Str("url", url).Msg("Fetching feed page")

	resp, err := c.client.Do(req)
	c.lastTime = time.Now()
	if err != nil {
		return nil, true, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode feed response: %w", err)
	}

	if envelope.NextChangeID == "" {
		return nil, false, fmt.Errorf("feed response missing required field next_change_id")
	}

	return &envelope, false, nil
}

// rateWait pauses for the remainder of the rate limiting interval.
func (c *Client) rateWait(ctx context.Context) error {
	if c.lastTime.IsZero() {
		return nil
	}
	elapsed := time.Since(c.lastTime)
	if elapsed >= c.rate {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.rate - elapsed):
		return nil
	}
}
