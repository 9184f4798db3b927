package domain

import "errors"

// Sentinel errors shared across components. Callers classify with
// errors.Is; the wrapping convention is fmt.Errorf("context: %w", err).
var (
	// ErrSourceUnavailable marks a source that could not be fetched this
	// run. The orchestrator records it and continues with other sources.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited marks an upstream 429. Clients retry with backoff a
	// bounded number of times, then report ErrSourceUnavailable.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedRecord marks a single source record that failed
	// validation. The record is skipped and counted; the fetch continues.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrConfigMissing marks an adapter whose credentials or endpoint are
	// not configured. The source is skipped with a warning.
	ErrConfigMissing = errors.New("source configuration missing")

	// ErrDuplicateWrite marks a write that lost a race with an identical
	// write. Safe to ignore: the data is already stored.
	ErrDuplicateWrite = errors.New("duplicate write")

	// ErrSpotNotFound marks a lookup for an ID that is not stored.
	ErrSpotNotFound = errors.New("spot not found")
)
