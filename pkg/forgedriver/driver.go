// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package forgedriver implements the per-platform drivers the reconciler
// uses to manage pull/merge requests. Read-only lookups go through the
// platform's Go API client where one exists (GitHub, GitLab); every
// mutating call shells out to the platform CLI (gh, az, glab) so
// credential handling stays with the tool the user already authenticated.
// Arguments are always passed as argv, never interpolated into a shell
// line, and PR bodies travel via a temp file.
package forgedriver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/archmagece/xfg/internal/gitcmd"
	"github.com/archmagece/xfg/pkg/forge"
	"github.com/archmagece/xfg/pkg/gitworkspace"
	"github.com/archmagece/xfg/pkg/xfgconfig"
	"github.com/archmagece/xfg/pkg/xlog"
)

// PullRequest identifies an open PR or MR on the forge.
type PullRequest struct {
	URL    string
	Number int
}

// MergeOptions carries the effective merge behavior for one repo.
type MergeOptions struct {
	Mode         xfgconfig.MergeMode
	Strategy     xfgconfig.PRStrategy
	DeleteBranch bool
	BypassReason string
}

// Driver is the forge contract the reconciler consumes. One driver is
// constructed per repository.
type Driver interface {
	// Info returns the detected repository identity.
	Info() forge.Info

	// Clone clones the repository into dir.
	Clone(ctx context.Context, dir string) error

	// ExistingPR looks up an open PR whose source is branch, nil when
	// none exists.
	ExistingPR(ctx context.Context, branch string) (*PullRequest, error)

	// ClosePR closes an open PR and deletes its remote source branch,
	// for the fresh-start branch policy. dir is the cloned workspace,
	// used when the platform CLI cannot delete the branch itself.
	ClosePR(ctx context.Context, dir string, pr *PullRequest, branch string) error

	// CreatePR opens a PR from branch onto base. The body is read from
	// bodyPath.
	CreatePR(ctx context.Context, branch, base, title, bodyPath string) (*PullRequest, error)

	// MergePR applies the merge mode to an open PR.
	MergePR(ctx context.Context, pr *PullRequest, branch string, opts MergeOptions) error

	// AutoMergeAllowed reports whether the repository accepts queued
	// auto-merge. Platforms without the concept return true.
	AutoMergeAllowed(ctx context.Context) (bool, error)

	// DirectPush pushes branch straight to origin from dir, for direct
	// mode.
	DirectPush(ctx context.Context, dir, branch string) error
}

// Config bundles the construction inputs shared by all drivers.
type Config struct {
	Info      forge.Info
	GitURL    string
	Workspace *gitworkspace.Workspace
	Logger    xlog.Logger

	// CLITimeout bounds each forge CLI invocation.
	CLITimeout time.Duration
}

func (c *Config) defaults() {
	if c.Workspace == nil {
		c.Workspace = gitworkspace.New()
	}
	if c.Logger == nil {
		c.Logger = xlog.Nop{}
	}
	if c.CLITimeout == 0 {
		c.CLITimeout = 2 * time.Minute
	}
}

// New constructs the driver for the detected platform.
func New(cfg Config) (Driver, error) {
	cfg.defaults()
	switch cfg.Info.Platform {
	case forge.GitHub:
		return newGitHub(cfg), nil
	case forge.AzureDevOps:
		return newAzureDevOps(cfg), nil
	case forge.GitLab:
		return newGitLab(cfg), nil
	default:
		return nil, fmt.Errorf("forgedriver: unsupported platform %q", cfg.Info.Platform)
	}
}

// cliDriver holds what every concrete driver shares: the git workspace
// for clone/push and a sanitized executor for the platform CLI.
type cliDriver struct {
	info   forge.Info
	gitURL string
	ws     *gitworkspace.Workspace
	cli    *gitcmd.Executor
	logger xlog.Logger
}

func newCLIDriver(cfg Config, binary string, env []string) cliDriver {
	return cliDriver{
		info:   cfg.Info,
		gitURL: cfg.GitURL,
		ws:     cfg.Workspace,
		logger: cfg.Logger,
		cli: gitcmd.NewExecutor(
			gitcmd.WithGitBinary(binary),
			gitcmd.WithArgValidator(gitcmd.SanitizeForgeArgs),
			gitcmd.WithTimeout(cfg.CLITimeout),
			gitcmd.WithEnv(env),
		),
	}
}

func (d cliDriver) Info() forge.Info { return d.info }

func (d cliDriver) Clone(ctx context.Context, dir string) error {
	return d.ws.Clone(ctx, d.gitURL, dir)
}

func (d cliDriver) DirectPush(ctx context.Context, dir, branch string) error {
	return d.ws.Push(ctx, dir, branch, false)
}

// tokenFromEnv returns the first non-empty value among names.
func tokenFromEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
