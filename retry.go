// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driftnet

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryPolicy defines retry behavior with exponential backoff. It is consumed
// by the HTTP tier and knows nothing about tiers itself.
type RetryPolicy struct {
	// MaxAttempts counts the first try, so 1 disables retries
	MaxAttempts int
	// InitialBackoff is the wait after the first failure
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts
	MaxBackoff time.Duration
	// Multiplier grows the wait after every failure
	Multiplier float64
	// Jitter is the +/- fraction applied to each wait (0.25 = ±25%)
	Jitter float64
	// RetryableStatusCodes are HTTP statuses worth another attempt
	RetryableStatusCodes []int
}

// NewDefaultRetryPolicy creates the default retry policy
func NewDefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.25,
		RetryableStatusCodes: []int{
			408, // Request Timeout
			425, // Too Early
			429, // Too Many Requests
			500, // Internal Server Error
			502, // Bad Gateway
			503, // Service Unavailable
			504, // Gateway Timeout
		},
	}
}

// ShouldRetry reports whether a failure on the given zero-based attempt
// deserves another try.
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt+1 >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var fetchErr *TransientFetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return p.isRetryableStatusCode(fetchErr.StatusCode)
	}
	return isRetryableError(err)
}

// Backoff returns the wait before the attempt following the given zero-based
// attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		backoff += backoff * p.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. It returns the last error and the number of
// attempts made.
func (p *RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func(attempt int) error) (int, error) {
	if logger == nil {
		logger = discardLogger
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if !p.ShouldRetry(attempt, lastErr) {
			return attempt + 1, lastErr
		}

		backoff := p.Backoff(attempt)
		logger.Debug("retrying after backoff", "attempt", attempt+1, "backoff", backoff, "error", lastErr)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		case <-timer.C:
		}
	}
	return maxAttempts, lastErr
}

func (p *RetryPolicy) isRetryableStatusCode(statusCode int) bool {
	for _, code := range p.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// isRetryableError checks for timeouts and connection-level failures
func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
