// Package source normalizes external parking data into candidate spots.
//
// Each adapter covers one source family: the open data portal datasets
// (meters, parking census, citations), the commercial places-search API,
// and the crowd-mapped community geodata service. Adapters page through
// their remote API with rate pacing, retry on 429, and emit normalized
// domain.CandidateSpot values carrying a per-source baseline confidence.
//
// A record that cannot produce a candidate (unparseable, out-of-range
// coordinates, zero supply) is skipped and counted, never fatal. Only
// transport-level failures abort a fetch, and those surface as
// domain.ErrSourceUnavailable so the orchestrator can isolate the source.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/curbdata/parking-aggregator/internal/domain"
)

// Adapter is one external source of candidate spots.
type Adapter interface {
	// Name returns the source name recorded in PrimarySource.
	Name() string

	// FetchAll retrieves and normalizes the complete dataset. skipped
	// counts records that produced no candidate. A non-nil error means the
	// fetch as a whole failed and any returned candidates are discarded.
	FetchAll(ctx context.Context) (candidates []domain.CandidateSpot, skipped int, err error)
}

// retryBaseDelay is the first 429 backoff step, doubling per attempt up to
// retryMaxDelay. Tests shrink it to keep retries fast.
var retryBaseDelay = 200 * time.Millisecond

const retryMaxDelay = 5 * time.Second

// apiClient bundles the transport pieces every source family shares: a
// timeout-bounded HTTP client, a request pacer, and a 429 retry budget.
type apiClient struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func newAPIClient(timeout, pageInterval time.Duration, maxRetries int) apiClient {
	return apiClient{
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(pageInterval), 1),
		maxRetries: maxRetries,
	}
}

// getJSON performs a rate-paced GET and decodes the body into out. 429s
// are retried with exponential backoff up to the retry budget; once the
// budget is spent, or on any network, status, or decode failure, the error
// wraps domain.ErrSourceUnavailable.
func (c apiClient) getJSON(ctx context.Context, fullURL string, header http.Header, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.getJSONOnce(ctx, fullURL, header, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			return err
		}
		if attempt >= c.maxRetries {
			return fmt.Errorf("%w: rate limited after %d retries", domain.ErrSourceUnavailable, c.maxRetries)
		}
		if err := sleepWithContext(ctx, backoffDelay(attempt)); err != nil {
			return err
		}
	}
}

func (c apiClient) getJSONOnce(ctx context.Context, fullURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Drain so the connection can be reused for the retry.
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", domain.ErrSourceUnavailable, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrSourceUnavailable, err)
	}
	return nil
}

// backoffDelay returns the delay before retry number attempt (0-based),
// doubling from retryBaseDelay and capped at retryMaxDelay.
func backoffDelay(attempt int) time.Duration {
	d := retryBaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseFloat parses a string as float64, returning 0 on failure. The open
// data portal serializes numeric columns as strings.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseInt parses a string as int, returning 0 on failure.
func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
