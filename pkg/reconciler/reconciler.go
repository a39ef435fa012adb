// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package reconciler drives one repository from a clean workspace to a
// pushed sync commit and, unless the repo runs in direct mode, an open
// pull request. Each repo moves through a fixed sequence of states;
// a failure in any state records the repo as failed and lets the runner
// continue with the next one.
package reconciler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/forgedriver"
	"github.com/archmagece/xfg/pkg/gitworkspace"
	"github.com/archmagece/xfg/pkg/manifest"
	"github.com/archmagece/xfg/pkg/render"
	"github.com/archmagece/xfg/pkg/xfgconfig"
	"github.com/archmagece/xfg/pkg/xlog"
)

// Status is the single summary state every repo ends in.
type Status string

const (
	StatusCreatedPR    Status = "created-pr"
	StatusUpdatedPR    Status = "updated-pr"
	StatusDirectPushed Status = "direct-pushed"
	StatusNoChange     Status = "no-change"
	StatusSkipped      Status = "skipped"
	StatusFailed       Status = "failed"
)

// Outcome is one repo's summary line.
type Outcome struct {
	Repo   string
	Status Status
	URL    string
	Err    error
}

// DriverFactory constructs the forge driver for one repo; tests
// substitute fakes.
type DriverFactory func(cfg forgedriver.Config) (forgedriver.Driver, error)

// Reconciler processes repos from one normalized spec.
type Reconciler struct {
	spec      *xfgconfig.NormalizedSpec
	ws        *gitworkspace.Workspace
	newDriver DriverFactory
	logger    xlog.Logger
	opts      Options

	// date is the ISO-8601 UTC day frozen at run start, shared by every
	// template expansion in the run.
	date string

	bodyTemplate string
}

// New creates a Reconciler. date is the frozen run date.
func New(spec *xfgconfig.NormalizedSpec, opts Options, ws *gitworkspace.Workspace, logger xlog.Logger, date string) (*Reconciler, error) {
	if logger == nil {
		logger = xlog.Nop{}
	}
	if ws == nil {
		ws = gitworkspace.New(gitworkspace.WithLogger(logger))
	}

	bodyTemplate, err := forgedriver.LoadBodyTemplate(spec.PRTemplate)
	if err != nil {
		return nil, err
	}

	return &Reconciler{
		spec:         spec,
		ws:           ws,
		newDriver:    func(cfg forgedriver.Config) (forgedriver.Driver, error) { return forgedriver.New(cfg) },
		logger:       logger,
		opts:         opts,
		date:         date,
		bodyTemplate: bodyTemplate,
	}, nil
}

// WithDriverFactory replaces the forge driver constructor.
func (r *Reconciler) WithDriverFactory(f DriverFactory) *Reconciler {
	r.newDriver = f
	return r
}

// SyncBranch returns the branch the sync commit lands on in PR modes.
func (r *Reconciler) SyncBranch() string {
	if r.opts.Branch != "" {
		return r.opts.Branch
	}
	return "chore/sync-" + SanitizeBranchToken(r.spec.ID)
}

// Reconcile runs the full state machine for one repo and never panics
// across repo boundaries: any error becomes a failed Outcome.
func (r *Reconciler) Reconcile(ctx context.Context, plan *xfgconfig.RepoPlan) Outcome {
	name := plan.Info.FullName()
	outcome := Outcome{Repo: name}

	status, url, err := r.reconcile(ctx, plan)
	if err != nil {
		var reconcileErr *xerr.ReconcileError
		if errors.As(err, &reconcileErr) {
			outcome.Status = StatusSkipped
			return outcome
		}
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("%s: %w", name, err)
		return outcome
	}

	outcome.Status = status
	outcome.URL = url
	return outcome
}

func (r *Reconciler) reconcile(ctx context.Context, plan *xfgconfig.RepoPlan) (Status, string, error) {
	prOptions, err := effectivePROptions(plan.PROptions, r.opts.PROverrides)
	if err != nil {
		return StatusFailed, "", err
	}
	direct := prOptions.Merge == xfgconfig.MergeDirect

	if len(plan.Files) == 0 {
		return StatusSkipped, "", &xerr.ReconcileError{Kind: xerr.NothingToDo}
	}

	dir := filepath.Join(r.opts.WorkDir, SanitizeBranchToken(plan.Info.FullName()))

	// Start -> Cleaned
	if err := r.ws.Clean(dir); err != nil {
		return StatusFailed, "", err
	}

	driver, err := r.newDriver(forgedriver.Config{
		Info:      plan.Info,
		GitURL:    plan.GitURL,
		Workspace: r.ws,
		Logger:    r.logger,
	})
	if err != nil {
		return StatusFailed, "", err
	}

	// Cleaned -> Cloned
	if err := withRetry(ctx, r.logger, r.opts.retries(), "clone", func() error {
		return driver.Clone(ctx, dir)
	}); err != nil {
		return StatusFailed, "", err
	}

	defaultBranch := r.ws.DefaultBranch(ctx, dir)

	// Cloned -> BranchReady
	branch := defaultBranch
	prExisted := false
	forcePush := false
	if !direct {
		branch = r.SyncBranch()

		var existing *forgedriver.PullRequest
		if err := withRetry(ctx, r.logger, r.opts.retries(), "lookup pr", func() error {
			var lookupErr error
			existing, lookupErr = driver.ExistingPR(ctx, branch)
			return lookupErr
		}); err != nil {
			return StatusFailed, "", err
		}

		if existing != nil {
			prExisted = true
			if !r.opts.DryRun {
				// Fresh start: close the stale PR and drop its branch so
				// the new sync commit cannot inherit merge conflicts.
				r.logger.Info("closing stale pull request %s", existing.URL)
				if err := driver.ClosePR(ctx, dir, existing, branch); err != nil {
					return StatusFailed, "", err
				}
			}
		} else if r.ws.RemoteBranchExists(ctx, dir, branch) {
			// Stale sync branch without a PR: reuse it, force-push over
			// its history.
			forcePush = true
		}

		if err := r.ws.EnsureBranch(ctx, dir, branch); err != nil {
			return StatusFailed, "", err
		}
	}

	// BranchReady -> Rendered
	touched, changed, err := r.renderAll(ctx, dir, plan)
	if err != nil {
		return StatusFailed, "", err
	}

	if r.opts.DryRun {
		if !changed {
			return StatusNoChange, "", nil
		}
		r.logger.Info("dry-run: %d file(s) would change in %s", len(touched), plan.Info.FullName())
		if direct {
			return StatusDirectPushed, "", nil
		}
		if prExisted {
			return StatusUpdatedPR, "", nil
		}
		return StatusCreatedPR, "", nil
	}

	// Rendered -> NoChange | Committed
	hasChanges, err := r.ws.HasChanges(ctx, dir)
	if err != nil {
		return StatusFailed, "", err
	}
	if !hasChanges {
		return StatusNoChange, "", nil
	}

	message := fmt.Sprintf("chore: sync %d file(s) via xfg [%s]", len(touched), r.spec.ID)
	if err := r.ws.CommitAll(ctx, dir, message); err != nil {
		return StatusFailed, "", err
	}

	// Committed -> Pushed
	if err := withRetry(ctx, r.logger, r.opts.retries(), "push", func() error {
		if direct {
			return driver.DirectPush(ctx, dir, branch)
		}
		return r.ws.Push(ctx, dir, branch, forcePush)
	}); err != nil {
		var gitErr *xerr.GitError
		if direct && errors.As(err, &gitErr) && gitErr.Kind == xerr.PushRejected {
			return StatusFailed, "", fmt.Errorf("direct push to %s rejected (protected branch?); consider prOptions.merge: force: %w", defaultBranch, err)
		}
		return StatusFailed, "", err
	}

	if direct {
		return StatusDirectPushed, "", nil
	}

	// Pushed -> PRStage
	url, err := r.prStage(ctx, dir, driver, branch, defaultBranch, prOptions, touched)
	if err != nil {
		return StatusFailed, "", err
	}
	if prExisted {
		return StatusUpdatedPR, url, nil
	}
	return StatusCreatedPR, url, nil
}

// renderAll writes every planned file, marks executables, deletes
// orphans, and rewrites the manifest. It returns the touched files (for
// the PR body and commit message) and whether anything would change
// (for dry-run, where nothing is written).
func (r *Reconciler) renderAll(ctx context.Context, dir string, plan *xfgconfig.RepoPlan) ([]forgedriver.Touched, bool, error) {
	m, err := manifest.Read(dir, r.spec.ID)
	if err != nil {
		return nil, false, err
	}

	var touched []forgedriver.Touched
	var tracked []string
	changed := false

	for _, planned := range plan.Files {
		file, err := render.Render(planned, plan.Info, plan.GitURL, r.date)
		if err != nil {
			return nil, false, err
		}

		target := filepath.Join(dir, filepath.FromSlash(file.Path))
		existing, readErr := os.ReadFile(target)
		exists := readErr == nil

		if file.DeleteOrphaned {
			tracked = append(tracked, file.Path)
		}

		if file.CreateOnly && exists {
			continue
		}
		if exists && bytes.Equal(existing, file.Bytes) && !file.Executable {
			continue
		}

		changed = changed || !exists || !bytes.Equal(existing, file.Bytes)
		touched = append(touched, forgedriver.Touched{Path: file.Path})

		if r.opts.DryRun {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, false, err
		}
		if err := os.WriteFile(target, file.Bytes, 0o644); err != nil {
			return nil, false, err
		}
		if file.Executable {
			if err := r.ws.MarkExecutable(ctx, dir, file.Path); err != nil {
				return nil, false, err
			}
		}
	}

	// Orphans: tracked by the previous run, gone from the plan.
	for _, orphan := range m.Orphans(r.spec.ID, tracked) {
		target := filepath.Join(dir, filepath.FromSlash(orphan))
		if rel, err := filepath.Rel(dir, target); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if _, err := os.Stat(target); err != nil {
			continue
		}

		changed = true
		if r.opts.NoDelete {
			r.logger.Info("orphan %s kept (--no-delete)", orphan)
			continue
		}
		touched = append(touched, forgedriver.Touched{Path: orphan, Deleted: true})
		if r.opts.DryRun {
			continue
		}
		if err := os.Remove(target); err != nil {
			return nil, false, err
		}
	}

	// The manifest is rewritten even under --no-delete so the next
	// unrestricted run deletes what this one kept.
	if err := m.SetTracked(r.spec.ID, tracked); err != nil {
		return nil, false, err
	}
	if !r.opts.DryRun {
		// Written after every tracked file so it shows up last in review.
		if err := m.Write(dir); err != nil {
			return nil, false, err
		}
	}

	return touched, changed, nil
}

func (r *Reconciler) prStage(ctx context.Context, dir string, driver forgedriver.Driver, branch, base string, prOptions xfgconfig.PROptions, touched []forgedriver.Touched) (string, error) {
	bodyPath, cleanup, err := forgedriver.WriteBodyFile(r.bodyTemplate, touched)
	if err != nil {
		return "", err
	}
	defer cleanup()

	title := fmt.Sprintf("chore: sync %d file(s) via xfg [%s]", len(touched), r.spec.ID)

	var pr *forgedriver.PullRequest
	if err := withRetry(ctx, r.logger, r.opts.retries(), "create pr", func() error {
		var createErr error
		pr, createErr = driver.CreatePR(ctx, branch, base, title, bodyPath)
		return createErr
	}); err != nil {
		return "", err
	}

	mode := prOptions.Merge
	if mode == xfgconfig.MergeAuto {
		allowed, err := driver.AutoMergeAllowed(ctx)
		if err != nil {
			// Degrade rather than fail: the PR exists and a human can
			// still merge it.
			r.logger.Warn("auto-merge precheck failed: %v", err)
			allowed = false
		}
		if !allowed {
			r.logger.Warn("%s: auto-merge not enabled, downgrading to manual", driver.Info().FullName())
			mode = xfgconfig.MergeManual
		}
	}

	if mode == xfgconfig.MergeManual {
		return pr.URL, nil
	}

	mergeErr := withRetry(ctx, r.logger, r.opts.retries(), "merge pr", func() error {
		return driver.MergePR(ctx, pr, branch, forgedriver.MergeOptions{
			Mode:         mode,
			Strategy:     prOptions.MergeStrategy,
			DeleteBranch: prOptions.DeleteBranch != nil && *prOptions.DeleteBranch,
			BypassReason: prOptions.BypassReason,
		})
	})
	if mergeErr != nil {
		var forgeErr *xerr.ForgeError
		if errors.As(mergeErr, &forgeErr) && forgeErr.Kind == xerr.AutoMergeDisabled {
			r.logger.Warn("%s: auto-merge rejected by forge, leaving pull request for manual merge", driver.Info().FullName())
			return pr.URL, nil
		}
		return pr.URL, mergeErr
	}

	return pr.URL, nil
}
