// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package xfgconfig

import (
	"sort"

	"github.com/archmagece/xfg/pkg/merge"
)

// resolveFile reduces the three inheritance levels (root FileSpec,
// per-repo overlay, override flag) for one target path into a single
// PlannedFile, or nil when the repo excludes the file. base may be nil
// when the file exists only in the repo's files mapping.
func resolveFile(path string, base *FileSpec, overlay *RepoFileOverride) (*PlannedFile, error) {
	if overlay != nil && overlay.Exclude {
		return nil, nil
	}
	if base == nil {
		base = &FileSpec{}
	}

	planned := &PlannedFile{
		Path:       path,
		Content:    base.Content,
		CreateOnly: base.CreateOnly,
		Header:     base.Header,
		SchemaURL:  base.SchemaURL,
		Template:   base.Template,
		FileVars:   base.Vars,
	}

	planned.Executable = defaultExecutable(path)
	if base.Executable != nil {
		planned.Executable = *base.Executable
	}
	if base.DeleteOrphaned != nil {
		planned.DeleteOrphaned = *base.DeleteOrphaned
	}

	if overlay == nil {
		return planned, nil
	}

	merged, err := mergeContent(base, &overlay.FileSpec, overlay.Override)
	if err != nil {
		return nil, err
	}
	planned.Content = merged

	if overlay.Has["createOnly"] {
		planned.CreateOnly = overlay.CreateOnly
	}
	if overlay.Executable != nil {
		planned.Executable = *overlay.Executable
	}
	if overlay.Has["header"] {
		planned.Header = overlay.Header
	}
	if overlay.Has["schemaUrl"] {
		planned.SchemaURL = overlay.SchemaURL
	}
	if overlay.Has["template"] {
		planned.Template = overlay.Template
	}
	if overlay.DeleteOrphaned != nil {
		planned.DeleteOrphaned = *overlay.DeleteOrphaned
	}
	planned.RepoVars = overlay.Vars

	return planned, nil
}

// mergeContent combines base and overlay content. With override:true the
// overlay content replaces the base outright; otherwise the two deep-merge
// under the base file's array strategy.
func mergeContent(base, overlay *FileSpec, override bool) (any, error) {
	if override {
		return overlay.Content, nil
	}
	if overlay.Content == nil {
		return base.Content, nil
	}
	if base.Content == nil {
		return overlay.Content, nil
	}

	strategy := base.MergeStrategy
	if strategy == "" {
		strategy = merge.Replace
	}

	baseKind := KindOf(base.Content)
	overlayKind := KindOf(overlay.Content)
	if baseKind == ContentObject && overlayKind == ContentObject {
		return merge.Merge(base.Content, overlay.Content, merge.Context{FileStrategy: strategy})
	}
	return merge.MergeText(base.Content, overlay.Content, strategy), nil
}

// planPaths returns the union of root file paths and repo-only file
// paths, root paths first in document order, repo-only additions sorted
// after them.
func planPaths(spec *Spec, repo *RepoSpec) []string {
	out := make([]string, 0, len(spec.FileOrder)+len(repo.Files))
	seen := make(map[string]bool, len(spec.FileOrder))
	for _, p := range spec.FileOrder {
		seen[p] = true
		out = append(out, p)
	}
	extra := make([]string, 0)
	for p := range repo.Files {
		if !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
