// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter tracks a forge API's rate-limit budget. The forge drivers
// call Wait before each read-only API request and feed every response's
// headers back in, so the tool idles instead of burning the remaining
// quota when a fleet of repos shares one token.
type Limiter struct {
	mu         sync.Mutex
	limit      int
	remaining  int
	resetTime  time.Time
	retryAfter time.Duration
}

// NewLimiter creates a limiter assuming a full budget of limit
// requests until the first response headers correct it.
func NewLimiter(limit int) *Limiter {
	if limit <= 0 {
		limit = 5000 // GitHub's authenticated default
	}
	return &Limiter{
		limit:     limit,
		remaining: limit,
		resetTime: time.Now().Add(1 * time.Hour),
	}
}

// Wait blocks until the rate limit allows another request, honoring a
// pending Retry-After first and then the reset window when the budget
// is exhausted.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()

	if l.retryAfter > 0 {
		waitDuration := l.retryAfter
		l.retryAfter = 0
		l.mu.Unlock()

		if err := sleep(ctx, waitDuration); err != nil {
			return err
		}

		l.mu.Lock()
	}

	if l.remaining <= 0 && time.Now().Before(l.resetTime) {
		waitDuration := time.Until(l.resetTime)
		l.mu.Unlock()

		if err := sleep(ctx, waitDuration); err != nil {
			return err
		}

		l.mu.Lock()
	}

	l.remaining--
	l.mu.Unlock()

	return nil
}

// UpdateFromHeaders updates rate limit state from response headers.
// Supports GitHub (X-RateLimit-*) and GitLab (RateLimit-*) styles plus
// Retry-After.
func (l *Limiter) UpdateFromHeaders(resp *http.Response) {
	if resp == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, prefix := range []string{"X-RateLimit-", "RateLimit-"} {
		if remaining := resp.Header.Get(prefix + "Remaining"); remaining != "" {
			if r, err := strconv.Atoi(remaining); err == nil {
				l.remaining = r
			}
		}
		if limit := resp.Header.Get(prefix + "Limit"); limit != "" {
			if lim, err := strconv.Atoi(limit); err == nil {
				l.limit = lim
			}
		}
		if reset := resp.Header.Get(prefix + "Reset"); reset != "" {
			if r, err := strconv.ParseInt(reset, 10, 64); err == nil {
				l.resetTime = time.Unix(r, 0)
			}
		}
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			l.retryAfter = time.Duration(seconds) * time.Second
		}
	}
}

// Remaining returns the requests left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// CalculateBackoff returns the exponential backoff with jitter used
// between retries of transient git and forge errors: 2^attempt seconds,
// capped at 60s, plus up to 10% jitter.
func CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 60*time.Second {
		backoff = 60 * time.Second
	}

	jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)

	return backoff + jitter
}

func sleep(ctx context.Context, duration time.Duration) error {
	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
