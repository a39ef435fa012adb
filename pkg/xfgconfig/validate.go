// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package xfgconfig

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/merge"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// structuredExtensions are the target extensions whose content must be
// an object (or absent); every other extension takes text content.
var structuredExtensions = map[string]bool{
	".json":  true,
	".json5": true,
	".yaml":  true,
	".yml":   true,
}

func schemaErr(name, format string, args ...any) error {
	return &xerr.ConfigError{
		Kind:    xerr.SchemaViolation,
		Name:    name,
		Message: fmt.Sprintf(format, args...),
	}
}

// validateTree checks the raw spec tree before it is decoded into typed
// values. File references are already resolved, so content checks apply
// to the resolved values.
func validateTree(root map[string]any) error {
	id, _ := root["id"].(string)
	if id == "" {
		return schemaErr("id", "id is required and must be a non-empty string")
	}
	if !idPattern.MatchString(id) {
		return schemaErr("id", "id may only contain letters, digits, '_' and '-': %q", id)
	}

	for key := range root {
		switch key {
		case "id", "files", "repos", "prOptions", "prTemplate", "githubHosts", "deleteOrphaned":
		default:
			return schemaErr(key, "unknown top-level key")
		}
	}

	files, ok := root["files"].(map[string]any)
	if !ok || len(files) == 0 {
		return schemaErr("files", "files is required and must be a non-empty mapping")
	}
	for target, v := range files {
		if err := validateTargetPath(target); err != nil {
			return err
		}
		if v == nil {
			continue
		}
		spec, ok := v.(map[string]any)
		if !ok {
			return schemaErr(target, "file entry must be a mapping")
		}
		if err := validateFileFields(target, spec, false); err != nil {
			return err
		}
	}

	repos, ok := root["repos"].([]any)
	if !ok || len(repos) == 0 {
		return schemaErr("repos", "repos is required and must be a non-empty sequence")
	}
	for i, r := range repos {
		repo, ok := r.(map[string]any)
		if !ok {
			return schemaErr(fmt.Sprintf("repos[%d]", i), "repo entry must be a mapping")
		}
		if err := validateRepo(i, repo); err != nil {
			return err
		}
	}

	if po, present := root["prOptions"]; present {
		if err := validatePROptions("prOptions", po); err != nil {
			return err
		}
	}
	if v, present := root["prTemplate"]; present {
		if _, ok := v.(string); !ok {
			return schemaErr("prTemplate", "prTemplate must be a string path")
		}
	}
	if v, present := root["githubHosts"]; present {
		seq, ok := v.([]any)
		if !ok {
			return schemaErr("githubHosts", "githubHosts must be a sequence of hostnames")
		}
		for _, h := range seq {
			if _, ok := h.(string); !ok {
				return schemaErr("githubHosts", "githubHosts must be a sequence of hostnames")
			}
		}
	}
	if v, present := root["deleteOrphaned"]; present {
		if _, ok := v.(bool); !ok {
			return schemaErr("deleteOrphaned", "deleteOrphaned must be a boolean")
		}
	}

	return nil
}

func validateTargetPath(target string) error {
	if target == "" {
		return schemaErr("files", "file path must not be empty")
	}
	if filepath.IsAbs(target) || strings.HasPrefix(target, "/") {
		return schemaErr(target, "file path must be relative")
	}
	cleaned := path.Clean(filepath.ToSlash(target))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return schemaErr(target, "file path must not escape the repository root")
	}
	for _, seg := range strings.Split(cleaned, "/") {
		if seg == ".." {
			return schemaErr(target, "file path must not contain '..'")
		}
	}
	return nil
}

func validateFileFields(target string, spec map[string]any, isOverride bool) error {
	for key, v := range spec {
		switch key {
		case "content":
			if err := validateContentShape(target, v); err != nil {
				return err
			}
		case "mergeStrategy":
			s, ok := v.(string)
			if !ok {
				return schemaErr(target, "mergeStrategy must be a string")
			}
			if _, err := merge.ParseStrategy(s); err != nil {
				return &xerr.ConfigError{
					Kind:    xerr.UnknownArrayMergeStrategy,
					Name:    target,
					Message: err.Error(),
				}
			}
		case "createOnly", "executable", "template", "deleteOrphaned":
			if _, ok := v.(bool); !ok {
				return schemaErr(target, "%s must be a boolean", key)
			}
		case "header":
			if !isStringOrStringSeq(v) {
				return schemaErr(target, "header must be a string or string sequence")
			}
		case "schemaUrl":
			if _, ok := v.(string); !ok {
				return schemaErr(target, "schemaUrl must be a string")
			}
		case "vars":
			m, ok := v.(map[string]any)
			if !ok {
				return schemaErr(target, "vars must be a mapping of scalars")
			}
			for name, val := range m {
				switch val.(type) {
				case string, bool, int, int64, float64, nil:
				default:
					return schemaErr(target, "vars.%s must be a scalar", name)
				}
			}
		case "override":
			if !isOverride {
				return schemaErr(target, "override is only valid inside a repo's files")
			}
			if _, ok := v.(bool); !ok {
				return schemaErr(target, "override must be a boolean")
			}
		default:
			return schemaErr(target, "unknown file field %q", key)
		}
	}
	return nil
}

// validateContentShape enforces the extension↔shape relation: structured
// extensions take an object (or nothing); everything else takes text.
func validateContentShape(target string, content any) error {
	if content == nil {
		return nil
	}
	structured := structuredExtensions[strings.ToLower(filepath.Ext(target))]
	switch KindOf(content) {
	case ContentObject:
		if !structured {
			return &xerr.ConfigError{
				Kind:    xerr.ContentTypeMismatch,
				Name:    target,
				Message: "object content requires a .json, .json5, .yaml or .yml target",
			}
		}
	case ContentText, ContentLines:
		if structured {
			return &xerr.ConfigError{
				Kind:    xerr.ContentTypeMismatch,
				Name:    target,
				Message: "structured target requires object content",
			}
		}
		if seq, ok := content.([]any); ok {
			for _, line := range seq {
				if _, ok := line.(string); !ok {
					return &xerr.ConfigError{
						Kind:    xerr.ContentTypeMismatch,
						Name:    target,
						Message: "content sequence must contain only strings",
					}
				}
			}
		}
	}
	return nil
}

func validateRepo(index int, repo map[string]any) error {
	label := fmt.Sprintf("repos[%d]", index)

	for key := range repo {
		switch key {
		case "git", "files", "prOptions":
		default:
			return schemaErr(label, "unknown repo field %q", key)
		}
	}

	switch git := repo["git"].(type) {
	case string:
		if git == "" {
			return schemaErr(label, "git URL must not be empty")
		}
	case []any:
		if len(git) == 0 {
			return schemaErr(label, "git URL list must not be empty")
		}
		for _, u := range git {
			s, ok := u.(string)
			if !ok || s == "" {
				return schemaErr(label, "git URL list must contain non-empty strings")
			}
		}
	default:
		return schemaErr(label, "git is required and must be a URL or URL list")
	}

	if files, present := repo["files"]; present {
		m, ok := files.(map[string]any)
		if !ok {
			return schemaErr(label, "files must be a mapping")
		}
		for target, v := range m {
			if err := validateTargetPath(target); err != nil {
				return err
			}
			switch entry := v.(type) {
			case bool:
				if entry {
					return schemaErr(target, "a repo file entry may be 'false' (exclude) or a mapping, not 'true'")
				}
			case nil:
			case map[string]any:
				if err := validateFileFields(target, entry, true); err != nil {
					return err
				}
			default:
				return schemaErr(target, "repo file entry must be 'false' or a mapping")
			}
		}
	}

	if po, present := repo["prOptions"]; present {
		if err := validatePROptions(label+".prOptions", po); err != nil {
			return err
		}
	}
	return nil
}

func validatePROptions(label string, v any) error {
	opts, ok := v.(map[string]any)
	if !ok {
		return schemaErr(label, "prOptions must be a mapping")
	}
	for key, val := range opts {
		switch key {
		case "merge":
			s, _ := val.(string)
			switch MergeMode(s) {
			case MergeManual, MergeAuto, MergeForce, MergeDirect:
			default:
				return schemaErr(label, "merge must be one of manual, auto, force, direct")
			}
		case "mergeStrategy":
			s, _ := val.(string)
			switch PRStrategy(s) {
			case StrategyMerge, StrategySquash, StrategyRebase:
			default:
				return schemaErr(label, "mergeStrategy must be one of merge, squash, rebase")
			}
		case "deleteBranch":
			if _, ok := val.(bool); !ok {
				return schemaErr(label, "deleteBranch must be a boolean")
			}
		case "bypassReason":
			if _, ok := val.(string); !ok {
				return schemaErr(label, "bypassReason must be a string")
			}
		default:
			return schemaErr(label, "unknown prOptions field %q", key)
		}
	}
	return nil
}

func isStringOrStringSeq(v any) bool {
	switch t := v.(type) {
	case string:
		return true
	case []any:
		for _, e := range t {
			if _, ok := e.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
