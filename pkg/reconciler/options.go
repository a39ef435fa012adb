// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reconciler

import (
	"dario.cat/mergo"

	"github.com/archmagece/xfg/pkg/xfgconfig"
)

// Options carries the run-wide settings handed down from the CLI.
type Options struct {
	// WorkDir is the root under which each repo gets its own workspace
	// subdirectory.
	WorkDir string

	// DryRun disables writes, commits, pushes, and forge calls; the
	// reconciler still clones and reports what would change.
	DryRun bool

	// Retries bounds the attempts for transient git and forge errors.
	Retries int

	// Branch overrides the derived sync branch name.
	Branch string

	// NoDelete suppresses orphan deletion; the manifest entry is still
	// rewritten.
	NoDelete bool

	// PROverrides are the --merge/--merge-strategy/--delete-branch
	// flag values, merged over every repo's effective PR options.
	PROverrides xfgconfig.PROptions
}

func (o Options) retries() int {
	if o.Retries <= 0 {
		return 3
	}
	return o.Retries
}

// effectivePROptions folds the CLI flag overrides onto the per-repo
// options the normalizer produced. Flags win wherever they are set.
func effectivePROptions(plan xfgconfig.PROptions, overrides xfgconfig.PROptions) (xfgconfig.PROptions, error) {
	merged := plan
	flags := overrides
	flags.DeleteBranch = nil
	if err := mergo.Merge(&merged, flags, mergo.WithOverride); err != nil {
		return plan, err
	}
	// mergo skips a false *bool, so the deleteBranch flag is copied as is.
	if overrides.DeleteBranch != nil {
		v := *overrides.DeleteBranch
		merged.DeleteBranch = &v
	}
	return merged, nil
}
