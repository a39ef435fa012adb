// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/ratelimit"
	"github.com/archmagece/xfg/pkg/xlog"
)

// retryable reports whether an error is a transient git or forge
// failure worth another attempt.
func retryable(err error) bool {
	var gitErr *xerr.GitError
	if errors.As(err, &gitErr) {
		return gitErr.Retryable()
	}
	var forgeErr *xerr.ForgeError
	if errors.As(err, &forgeErr) {
		return forgeErr.Retryable()
	}
	return false
}

// withRetry runs op up to attempts times, backing off exponentially
// between transient failures. Permanent errors return immediately.
func withRetry(ctx context.Context, logger xlog.Logger, attempts int, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := ratelimit.CalculateBackoff(attempt)
			logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt, attempts, backoff, err)
			select {
			case <-ctx.Done():
				return &xerr.GitError{Kind: xerr.Cancelled, Command: op, Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}
