// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package xfgconfig loads, validates, and normalizes the declarative sync
// spec. The entry point is Load, which runs the full normalization
// pipeline and returns a NormalizedSpec: one reconciliation plan per
// target repository, ready for rendering once the repository's identity
// is known.
package xfgconfig

import (
	"strings"

	"github.com/archmagece/xfg/internal/omap"
	"github.com/archmagece/xfg/pkg/forge"
	"github.com/archmagece/xfg/pkg/merge"
	"github.com/archmagece/xfg/pkg/template"
)

// MergeMode selects how the sync commit reaches the default branch.
type MergeMode string

const (
	MergeManual MergeMode = "manual"
	MergeAuto   MergeMode = "auto"
	MergeForce  MergeMode = "force"
	MergeDirect MergeMode = "direct"
)

// PRStrategy selects how the forge combines the sync branch on merge.
type PRStrategy string

const (
	StrategyMerge  PRStrategy = "merge"
	StrategySquash PRStrategy = "squash"
	StrategyRebase PRStrategy = "rebase"
)

// PROptions controls pull/merge request behavior for a repo. Zero-value
// fields mean "unset"; Effective applies the defaults.
type PROptions struct {
	Merge         MergeMode  `yaml:"merge,omitempty"`
	MergeStrategy PRStrategy `yaml:"mergeStrategy,omitempty"`
	DeleteBranch  *bool      `yaml:"deleteBranch,omitempty"`
	BypassReason  string     `yaml:"bypassReason,omitempty"`
}

// Effective returns a copy with defaults applied: merge auto, strategy
// squash, deleteBranch true.
func (o PROptions) Effective() PROptions {
	out := o
	if out.Merge == "" {
		out.Merge = MergeAuto
	}
	if out.MergeStrategy == "" {
		out.MergeStrategy = StrategySquash
	}
	if out.DeleteBranch == nil {
		t := true
		out.DeleteBranch = &t
	}
	return out
}

// ContentKind tags the dynamic shape of a FileSpec's content.
type ContentKind int

const (
	ContentAbsent ContentKind = iota
	ContentObject
	ContentText
	ContentLines
)

func (k ContentKind) String() string {
	switch k {
	case ContentObject:
		return "object"
	case ContentText:
		return "string"
	case ContentLines:
		return "string sequence"
	default:
		return "absent"
	}
}

// KindOf classifies a merged content value. The normalizer guarantees
// content is nil, an object (*omap.Map from the loader, or a plain Go
// map), string, or []any of scalars by the time downstream code
// dispatches on the tag.
func KindOf(v any) ContentKind {
	switch v.(type) {
	case nil:
		return ContentAbsent
	case *omap.Map, map[string]any, map[any]any:
		return ContentObject
	case string:
		return ContentText
	case []any:
		return ContentLines
	default:
		return ContentText
	}
}

// FileSpec is the root-level declaration of one target file.
type FileSpec struct {
	Content        any            `yaml:"content,omitempty"`
	MergeStrategy  merge.Strategy `yaml:"mergeStrategy,omitempty"`
	CreateOnly     bool           `yaml:"createOnly,omitempty"`
	Executable     *bool          `yaml:"executable,omitempty"`
	Header         []string       `yaml:"header,omitempty"`
	SchemaURL      string         `yaml:"schemaUrl,omitempty"`
	Template       bool           `yaml:"template,omitempty"`
	Vars           template.Vars  `yaml:"vars,omitempty"`
	DeleteOrphaned *bool          `yaml:"deleteOrphaned,omitempty"`
}

// RepoFileOverride is a per-repo entry for one target file: either an
// exclusion (Exclude true, everything else ignored) or an overlay with
// the same shape as FileSpec plus the override flag.
type RepoFileOverride struct {
	Exclude bool
	FileSpec
	Override bool `yaml:"override,omitempty"`

	// Has records which keys the overlay mapping actually set, so
	// inheritance can tell an explicit false from an absent field.
	Has map[string]bool
}

// RepoSpec declares one target repository. After the normalizer's
// git-array expansion every RepoSpec carries exactly one URL.
type RepoSpec struct {
	Git       []string                     `yaml:"git"`
	Files     map[string]*RepoFileOverride `yaml:"files,omitempty"`
	PROptions *PROptions                   `yaml:"prOptions,omitempty"`
}

// Spec is the parsed root document, immutable after Load.
type Spec struct {
	ID             string
	Files          map[string]*FileSpec
	FileOrder      []string // target paths in document order
	Repos          []*RepoSpec
	PROptions      *PROptions
	PRTemplate     string
	GithubHosts    []string
	DeleteOrphaned bool

	// Dir is the directory containing the spec file; @refs resolve
	// against it.
	Dir string
}

// PlannedFile is a fully inherited, merged, env-interpolated declaration
// of one file for one repo. Rendering to bytes happens later, once the
// repo's forge identity is known (template expansion needs it).
type PlannedFile struct {
	Path           string
	Content        any
	CreateOnly     bool
	Executable     bool
	Header         []string
	SchemaURL      string
	Template       bool
	FileVars       template.Vars // from the root FileSpec
	RepoVars       template.Vars // from the per-repo override
	DeleteOrphaned bool
}

// RepoPlan is the per-repo reconciliation plan: the planned files in
// spec order plus the effective PR options and the detected identity.
type RepoPlan struct {
	GitURL    string
	Info      forge.Info
	Files     []*PlannedFile
	PROptions PROptions
}

// NormalizedSpec is the output of the full pipeline.
type NormalizedSpec struct {
	ID          string
	PRTemplate  string
	GithubHosts []string
	Repos       []*RepoPlan
}

// defaultExecutable derives the executable bit from the target path when
// the spec leaves it unset.
func defaultExecutable(path string) bool {
	return strings.HasSuffix(path, ".sh")
}
