package scraper

import (
	"context"
	"time"
)

// Fetcher loads a URL and returns the rendered document.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (Page, error)
}

// Pacer blocks until the next page load for url may start.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether and when a failed page load is retried.
// attempt counts the loads already made, starting at 1.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
