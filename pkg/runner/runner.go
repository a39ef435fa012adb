// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package runner processes the repositories of a normalized spec
// sequentially, in input order, and accumulates one outcome per repo.
// A failed repo never stops the run; cancellation does.
package runner

import (
	"context"
	"errors"

	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/reconciler"
	"github.com/archmagece/xfg/pkg/xfgconfig"
	"github.com/archmagece/xfg/pkg/xlog"
)

// Result is the whole run's outcome set, in input order.
type Result struct {
	Outcomes []reconciler.Outcome
}

// Failed reports whether at least one repo failed.
func (r Result) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == reconciler.StatusFailed {
			return true
		}
	}
	return false
}

// Counts tallies outcomes by status for the summary footer.
func (r Result) Counts() map[reconciler.Status]int {
	counts := make(map[reconciler.Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Run reconciles every repo in the spec. When ctx is cancelled the
// in-flight repo is recorded as failed with a Cancelled kind and the
// remaining repos are not started.
func Run(ctx context.Context, spec *xfgconfig.NormalizedSpec, rec *reconciler.Reconciler, logger xlog.Logger) Result {
	var result Result

	for _, plan := range spec.Repos {
		if ctx.Err() != nil {
			result.Outcomes = append(result.Outcomes, reconciler.Outcome{
				Repo:   plan.Info.FullName(),
				Status: reconciler.StatusFailed,
				Err:    &xerr.GitError{Kind: xerr.Cancelled, Cause: ctx.Err()},
			})
			break
		}

		logger.Info("syncing %s", plan.Info.FullName())
		outcome := rec.Reconcile(ctx, plan)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Err != nil {
			logger.Error("%s: %v", plan.Info.FullName(), outcome.Err)
			if cancelled(outcome.Err) {
				break
			}
		}
	}

	return result
}

func cancelled(err error) bool {
	var gitErr *xerr.GitError
	if errors.As(err, &gitErr) && gitErr.Kind == xerr.Cancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}
