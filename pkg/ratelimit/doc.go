// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package ratelimit paces the read-only forge API calls (existing-PR
// lookup, auto-merge precheck) made while syncing a fleet of
// repositories, and provides the backoff schedule the reconciler uses
// between retries of transient errors.
//
// # Usage
//
//	limiter := ratelimit.NewLimiter(5000)
//	if err := limiter.Wait(ctx); err != nil { ... }
//	limiter.UpdateFromHeaders(resp)
package ratelimit
