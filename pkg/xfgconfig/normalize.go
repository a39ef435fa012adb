// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package xfgconfig

import (
	"fmt"
	"path/filepath"

	"github.com/archmagece/xfg/internal/envsub"
	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/forge"
	"github.com/archmagece/xfg/pkg/template"
)

// Normalize runs the back half of the pipeline: inheritance resolution,
// env interpolation, forge detection, and effective PR options. The
// returned plans are deterministic for a given spec and environment.
func Normalize(spec *Spec, opts LoadOptions) (*NormalizedSpec, error) {
	out := &NormalizedSpec{
		ID:          spec.ID,
		PRTemplate:  spec.PRTemplate,
		GithubHosts: spec.GithubHosts,
	}
	// The PR body template path is declared relative to the config file.
	if out.PRTemplate != "" && !filepath.IsAbs(out.PRTemplate) {
		out.PRTemplate = filepath.Join(spec.Dir, out.PRTemplate)
	}

	lookup := opts.lookup()
	strict := !opts.NonStrict

	for _, repo := range spec.Repos {
		url := repo.Git[0]

		info, err := forge.Detect(url, spec.GithubHosts)
		if err != nil {
			return nil, &xerr.ConfigError{
				Kind:    xerr.SchemaViolation,
				Name:    url,
				Message: "cannot classify repository URL",
				Cause:   err,
			}
		}

		prOptions := combinePROptions(spec.PROptions, repo.PROptions).Effective()
		if info.Platform == forge.AzureDevOps && prOptions.Merge == MergeForce && prOptions.BypassReason == "" {
			return nil, &xerr.ConfigError{
				Kind:    xerr.SchemaViolation,
				Name:    url,
				Message: "merge: force on Azure DevOps requires prOptions.bypassReason",
			}
		}

		plan := &RepoPlan{GitURL: url, Info: info, PROptions: prOptions}

		for _, path := range planPaths(spec, repo) {
			var overlay *RepoFileOverride
			if repo.Files != nil {
				overlay = repo.Files[path]
			}
			planned, err := resolveFile(path, spec.Files[path], overlay)
			if err != nil {
				return nil, err
			}
			if planned == nil {
				continue
			}
			if !planned.DeleteOrphaned && fileTrackingDefault(spec, path, overlay) {
				planned.DeleteOrphaned = true
			}
			if err := interpolatePlanned(planned, lookup, strict); err != nil {
				return nil, err
			}
			plan.Files = append(plan.Files, planned)
		}

		out.Repos = append(out.Repos, plan)
	}

	return out, nil
}

// fileTrackingDefault reports whether the root deleteOrphaned default
// applies to a file neither level set explicitly.
func fileTrackingDefault(spec *Spec, path string, overlay *RepoFileOverride) bool {
	if base := spec.Files[path]; base != nil && base.DeleteOrphaned != nil {
		return false
	}
	if overlay != nil && overlay.DeleteOrphaned != nil {
		return false
	}
	return spec.DeleteOrphaned
}

// interpolatePlanned applies env interpolation to every string leaf of a
// planned file. Interpolation runs after inheritance so variables
// referenced only by excluded files never fail a strict load.
func interpolatePlanned(p *PlannedFile, lookup envsub.Lookup, strict bool) error {
	content, err := envsub.Walk(p.Content, lookup, strict)
	if err != nil {
		return err
	}
	p.Content = content

	// Header shares its backing array with the Spec; expand into a copy.
	header := append([]string(nil), p.Header...)
	for i, line := range header {
		expanded, err := envsub.Expand(line, lookup, strict)
		if err != nil {
			return err
		}
		header[i] = expanded
	}
	p.Header = header

	if p.SchemaURL != "" {
		expanded, err := envsub.Expand(p.SchemaURL, lookup, strict)
		if err != nil {
			return err
		}
		p.SchemaURL = expanded
	}

	p.FileVars, err = interpolateVars(p.FileVars, lookup, strict)
	if err != nil {
		return err
	}
	p.RepoVars, err = interpolateVars(p.RepoVars, lookup, strict)
	return err
}

func interpolateVars(vars template.Vars, lookup envsub.Lookup, strict bool) (template.Vars, error) {
	if vars == nil {
		return nil, nil
	}
	out := make(template.Vars, len(vars))
	for k, v := range vars {
		if s, ok := v.(string); ok {
			expanded, err := envsub.Expand(s, lookup, strict)
			if err != nil {
				return nil, fmt.Errorf("vars.%s: %w", k, err)
			}
			out[k] = expanded
			continue
		}
		out[k] = v
	}
	return out, nil
}

// combinePROptions overlays repo-level PR options onto the root-level
// ones, field by field.
func combinePROptions(root, repo *PROptions) PROptions {
	var out PROptions
	if root != nil {
		out = *root
	}
	if repo == nil {
		return out
	}
	if repo.Merge != "" {
		out.Merge = repo.Merge
	}
	if repo.MergeStrategy != "" {
		out.MergeStrategy = repo.MergeStrategy
	}
	if repo.DeleteBranch != nil {
		out.DeleteBranch = repo.DeleteBranch
	}
	if repo.BypassReason != "" {
		out.BypassReason = repo.BypassReason
	}
	return out
}
