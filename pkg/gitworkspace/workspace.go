// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitworkspace wraps the git operations the reconciler needs:
// clone, default-branch detection, sync-branch management, staging,
// committing, and pushing. All subprocess calls go through
// internal/gitcmd's sanitized argv executor.
package gitworkspace

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/archmagece/xfg/internal/gitcmd"
	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/xlog"
)

// Runner is the subset of gitcmd.Executor the workspace uses; tests
// substitute a fake.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (*gitcmd.Result, error)
	RunOutput(ctx context.Context, dir string, args ...string) (string, error)
	RunQuiet(ctx context.Context, dir string, args ...string) (bool, error)
}

// Workspace executes git operations inside per-repo working directories.
type Workspace struct {
	git    Runner
	logger xlog.Logger
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithRunner replaces the default git executor.
func WithRunner(r Runner) Option {
	return func(w *Workspace) { w.git = r }
}

// WithLogger sets the workspace logger.
func WithLogger(l xlog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// New creates a Workspace backed by the git CLI.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		git:    gitcmd.NewExecutor(),
		logger: xlog.Nop{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Clean removes a stale workspace directory.
func (w *Workspace) Clean(path string) error {
	return os.RemoveAll(path)
}

// Clone clones url into dir, preserving the remote as origin.
func (w *Workspace) Clone(ctx context.Context, url, dir string) error {
	if err := gitcmd.SanitizeURL(url); err != nil {
		return &xerr.GitError{Kind: xerr.CloneFailed, Command: "clone", Cause: err}
	}

	result, err := w.git.Run(ctx, "", "clone", url, dir)
	if err != nil {
		return &xerr.GitError{Kind: xerr.CloneFailed, Command: "clone", Cause: err}
	}
	if result.ExitCode != 0 {
		return classify("clone", xerr.CloneFailed, result)
	}
	w.logger.Debug("cloned %s", url)
	return nil
}

// DefaultBranch determines the remote's default branch: the HEAD line of
// `remote show origin` first, then origin/main, then origin/master, then
// the literal "main".
func (w *Workspace) DefaultBranch(ctx context.Context, dir string) string {
	if out, err := w.git.RunOutput(ctx, dir, "remote", "show", "origin"); err == nil {
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if branch, ok := strings.CutPrefix(line, "HEAD branch:"); ok {
				branch = strings.TrimSpace(branch)
				if branch != "" && branch != "(unknown)" {
					return branch
				}
			}
		}
	}

	for _, candidate := range []string{"main", "master"} {
		if ok, err := w.git.RunQuiet(ctx, dir, "rev-parse", "--verify", "--quiet", "origin/"+candidate); err == nil && ok {
			return candidate
		}
	}
	return "main"
}

// RemoteBranchExists probes origin for a branch head.
func (w *Workspace) RemoteBranchExists(ctx context.Context, dir, name string) bool {
	out, err := w.git.RunOutput(ctx, dir, "ls-remote", "--heads", "origin", name)
	return err == nil && out != ""
}

// EnsureBranch checks out the sync branch: tracking origin/<name> when
// the remote already has it, created fresh from HEAD otherwise.
func (w *Workspace) EnsureBranch(ctx context.Context, dir, name string) error {
	if err := gitcmd.SanitizeBranchName(name); err != nil {
		return &xerr.GitError{Kind: xerr.GitTransient, Command: "checkout", Cause: err}
	}

	if w.RemoteBranchExists(ctx, dir, name) {
		if result, err := w.git.Run(ctx, dir, "fetch", "origin", name); err != nil || result.ExitCode != 0 {
			return classifyOrWrap("fetch", result, err)
		}
		result, err := w.git.Run(ctx, dir, "checkout", "--track", "origin/"+name)
		if err != nil || result.ExitCode != 0 {
			return classifyOrWrap("checkout", result, err)
		}
		return nil
	}

	result, err := w.git.Run(ctx, dir, "checkout", "-b", name)
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("checkout", result, err)
	}
	return nil
}

// Checkout switches to an existing branch.
func (w *Workspace) Checkout(ctx context.Context, dir, name string) error {
	result, err := w.git.Run(ctx, dir, "checkout", name)
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("checkout", result, err)
	}
	return nil
}

// DeleteRemoteBranch removes origin/<name>, used by the fresh-start
// branch policy before recreating the sync branch.
func (w *Workspace) DeleteRemoteBranch(ctx context.Context, dir, name string) error {
	result, err := w.git.Run(ctx, dir, "push", "origin", "--delete", name)
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("push --delete", result, err)
	}
	return nil
}

// HasChanges reports whether the working tree differs from HEAD.
func (w *Workspace) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := w.git.RunOutput(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, wrapGitErr("status", err)
	}
	return out != "", nil
}

// CommitAll stages everything, including deletions, and commits.
func (w *Workspace) CommitAll(ctx context.Context, dir, message string) error {
	if err := gitcmd.SanitizeCommitMessage(message); err != nil {
		return &xerr.GitError{Kind: xerr.GitTransient, Command: "commit", Cause: err}
	}

	result, err := w.git.Run(ctx, dir, "add", "--all")
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("add", result, err)
	}
	result, err = w.git.Run(ctx, dir, "commit", "--message", message)
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("commit", result, err)
	}
	return nil
}

// MarkExecutable records the executable bit in the index so the commit
// carries the mode even on filesystems that do not track it.
func (w *Workspace) MarkExecutable(ctx context.Context, dir, path string) error {
	result, err := w.git.Run(ctx, dir, "add", "--", path)
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("add", result, err)
	}
	result, err = w.git.Run(ctx, dir, "update-index", "--chmod=+x", "--", path)
	if err != nil || result.ExitCode != 0 {
		return classifyOrWrap("update-index", result, err)
	}
	return nil
}

// Push pushes branch to origin. force is used only when reusing an
// existing sync branch whose history was recreated.
func (w *Workspace) Push(ctx context.Context, dir, branch string, force bool) error {
	args := []string{"push", "origin", branch}
	if force {
		args = append(args, "--force")
	}
	result, err := w.git.Run(ctx, dir, args...)
	if err != nil {
		return wrapGitErr("push", err)
	}
	if result.ExitCode != 0 {
		if isRejection(result.Stderr) {
			return &xerr.GitError{
				Kind:    xerr.PushRejected,
				Command: "push",
				Cause:   stderrErr(result),
			}
		}
		return classify("push", xerr.GitTransient, result)
	}
	return nil
}

func isRejection(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "protected branch") ||
		strings.Contains(s, "pre-receive hook declined") ||
		strings.Contains(s, "[rejected]") ||
		strings.Contains(s, "refusing to") ||
		strings.Contains(s, "cannot force-push") ||
		strings.Contains(s, "review required")
}

// transientMarkers identify network-level failures worth retrying.
var transientMarkers = []string{
	"could not resolve host",
	"connection reset",
	"connection timed out",
	"operation timed out",
	"early eof",
	"remote end hung up",
	"rpc failed",
	"returned error: 429",
	"returned error: 500",
	"returned error: 502",
	"returned error: 503",
	"returned error: 504",
}

func isTransient(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range transientMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func classify(op string, fallback xerr.GitKind, result *gitcmd.Result) error {
	kind := fallback
	if isTransient(result.Stderr) {
		kind = xerr.GitTransient
	}
	if errors.Is(result.Error, context.Canceled) {
		kind = xerr.Cancelled
	}
	return &xerr.GitError{Kind: kind, Command: op, Cause: stderrErr(result)}
}

func classifyOrWrap(op string, result *gitcmd.Result, err error) error {
	if err != nil {
		return wrapGitErr(op, err)
	}
	return classify(op, xerr.GitTransient, result)
}

func wrapGitErr(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &xerr.GitError{Kind: xerr.Cancelled, Command: op, Cause: err}
	}
	return &xerr.GitError{Kind: xerr.GitTransient, Command: op, Cause: err}
}

func stderrErr(result *gitcmd.Result) error {
	if result == nil {
		return nil
	}
	if result.Error != nil && strings.TrimSpace(result.Stderr) == "" {
		return result.Error
	}
	return &gitcmd.GitError{
		Command:  "git",
		ExitCode: result.ExitCode,
		Stderr:   strings.TrimSpace(result.Stderr),
		Cause:    result.Error,
	}
}
