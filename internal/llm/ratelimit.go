package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// CallLimiter bounds the rate of outbound LLM calls the Fact Extractor's
// worker pool makes, independent of how many workers are running
// concurrently.
type CallLimiter struct {
	limiter *rate.Limiter
}

// NewCallLimiter creates a limiter sustaining callsPerSec calls per second
// with the given burst allowance.
func NewCallLimiter(callsPerSec float64, burst int) *CallLimiter {
	if callsPerSec <= 0 {
		callsPerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &CallLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Duration(1000.0/callsPerSec)*time.Millisecond), burst),
	}
}

// Wait blocks until a call slot is available or ctx is cancelled.
func (c *CallLimiter) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}
