// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package xfgconfig

import (
	"sort"

	"github.com/archmagece/xfg/pkg/merge"
	"github.com/archmagece/xfg/pkg/template"
)

// decodeSpec builds the typed Spec from an already-validated tree.
// order carries the document order of the files mapping; paths
// missing from it (none in practice) are appended sorted so every file
// has a stable position.
func decodeSpec(root map[string]any, order []string) (*Spec, error) {
	spec := &Spec{
		ID:    root["id"].(string),
		Files: make(map[string]*FileSpec),
	}

	files := root["files"].(map[string]any)
	for target, v := range files {
		fs, err := decodeFileSpec(v)
		if err != nil {
			return nil, err
		}
		spec.Files[target] = fs
	}
	spec.FileOrder = completeOrder(order, spec.Files)

	for _, r := range root["repos"].([]any) {
		repo, err := decodeRepoSpec(r.(map[string]any))
		if err != nil {
			return nil, err
		}
		spec.Repos = append(spec.Repos, repo)
	}

	if po, ok := root["prOptions"].(map[string]any); ok {
		spec.PROptions = decodePROptions(po)
	}
	if s, ok := root["prTemplate"].(string); ok {
		spec.PRTemplate = s
	}
	if hosts, ok := root["githubHosts"].([]any); ok {
		for _, h := range hosts {
			spec.GithubHosts = append(spec.GithubHosts, h.(string))
		}
	}
	if b, ok := root["deleteOrphaned"].(bool); ok {
		spec.DeleteOrphaned = b
	}

	return spec, nil
}

func completeOrder(order []string, files map[string]*FileSpec) []string {
	seen := make(map[string]bool, len(order))
	out := make([]string, 0, len(files))
	for _, p := range order {
		if _, ok := files[p]; ok && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	missing := make([]string, 0)
	for p := range files {
		if !seen[p] {
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return append(out, missing...)
}

func decodeFileSpec(v any) (*FileSpec, error) {
	fs := &FileSpec{}
	spec, ok := v.(map[string]any)
	if !ok {
		return fs, nil
	}

	fs.Content = spec["content"]
	if s, ok := spec["mergeStrategy"].(string); ok {
		strategy, err := merge.ParseStrategy(s)
		if err != nil {
			return nil, err
		}
		fs.MergeStrategy = strategy
	}
	if b, ok := spec["createOnly"].(bool); ok {
		fs.CreateOnly = b
	}
	if b, ok := spec["executable"].(bool); ok {
		fs.Executable = &b
	}
	fs.Header = toStringSeq(spec["header"])
	if s, ok := spec["schemaUrl"].(string); ok {
		fs.SchemaURL = s
	}
	if b, ok := spec["template"].(bool); ok {
		fs.Template = b
	}
	if m, ok := spec["vars"].(map[string]any); ok {
		fs.Vars = template.Vars(m)
	}
	if b, ok := spec["deleteOrphaned"].(bool); ok {
		fs.DeleteOrphaned = &b
	}
	return fs, nil
}

func decodeRepoSpec(repo map[string]any) (*RepoSpec, error) {
	rs := &RepoSpec{}

	switch git := repo["git"].(type) {
	case string:
		rs.Git = []string{git}
	case []any:
		for _, u := range git {
			rs.Git = append(rs.Git, u.(string))
		}
	}

	if files, ok := repo["files"].(map[string]any); ok {
		rs.Files = make(map[string]*RepoFileOverride, len(files))
		for target, v := range files {
			switch entry := v.(type) {
			case bool:
				rs.Files[target] = &RepoFileOverride{Exclude: true}
			case map[string]any:
				fs, err := decodeFileSpec(entry)
				if err != nil {
					return nil, err
				}
				override := &RepoFileOverride{FileSpec: *fs, Has: make(map[string]bool, len(entry))}
				for key := range entry {
					override.Has[key] = true
				}
				if b, ok := entry["override"].(bool); ok {
					override.Override = b
				}
				rs.Files[target] = override
			default:
				rs.Files[target] = &RepoFileOverride{}
			}
		}
	}

	if po, ok := repo["prOptions"].(map[string]any); ok {
		rs.PROptions = decodePROptions(po)
	}
	return rs, nil
}

func decodePROptions(opts map[string]any) *PROptions {
	po := &PROptions{}
	if s, ok := opts["merge"].(string); ok {
		po.Merge = MergeMode(s)
	}
	if s, ok := opts["mergeStrategy"].(string); ok {
		po.MergeStrategy = PRStrategy(s)
	}
	if b, ok := opts["deleteBranch"].(bool); ok {
		po.DeleteBranch = &b
	}
	if s, ok := opts["bypassReason"].(string); ok {
		po.BypassReason = s
	}
	return po
}

func toStringSeq(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
