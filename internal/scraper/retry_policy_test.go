package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3)
	transient := errors.New("connection reset")

	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(transient, 1))
	assert.True(t, p.ShouldRetry(transient, 2))
	assert.False(t, p.ShouldRetry(transient, 3))
	assert.False(t, p.ShouldRetry(fmt.Errorf("nav: %w", context.Canceled), 1))
	assert.True(t, p.ShouldRetry(context.DeadlineExceeded, 1), "page load timeouts are retried")
	assert.False(t, p.ShouldRetry(fmt.Errorf("status 404: %w", ErrPermanent), 1))

	assert.False(t, NewExponentialRetryPolicy(0).ShouldRetry(transient, 1))
}

func TestExponentialRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(10)
	for attempt := 1; attempt <= 8; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, 125*time.Millisecond)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	first := p.Backoff(1)
	assert.Less(t, first, 250*time.Millisecond+time.Millisecond)
}

func TestSleepCtx(t *testing.T) {
	t.Parallel()

	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
