// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package xfgconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/archmagece/xfg/internal/omap"
	"github.com/archmagece/xfg/internal/xerr"
)

// resolveFileRef expands a "@relative/path" content reference against the
// config directory. The resolved path must stay inside that directory;
// absolute references and any form of traversal are rejected before the
// file is read. The file is parsed into an object when its extension says
// it holds structured data, and returned as a raw string otherwise, so
// downstream type checks apply to the resolved content.
func resolveFileRef(ref, configDir string) (any, error) {
	rel := strings.TrimPrefix(ref, "@")

	if filepath.IsAbs(rel) {
		return nil, &xerr.ConfigError{
			Kind:    xerr.PathEscape,
			Name:    ref,
			Message: "file reference must be relative to the config directory",
		}
	}

	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return nil, &xerr.ConfigError{
			Kind:    xerr.PathEscape,
			Name:    ref,
			Message: "file reference escapes the config directory",
		}
	}

	// Re-check the joined path against the absolute config dir. The
	// check is lexical; symlinks are not resolved.
	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}
	abs := filepath.Join(absDir, cleaned)
	if rel, err := filepath.Rel(absDir, abs); err != nil || strings.HasPrefix(rel, "..") {
		return nil, &xerr.ConfigError{
			Kind:    xerr.PathEscape,
			Name:    ref,
			Message: "file reference escapes the config directory",
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &xerr.ConfigError{
			Kind:    xerr.SchemaViolation,
			Name:    ref,
			Message: "cannot read referenced file",
			Cause:   err,
		}
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".json":
		v, err := omap.UnmarshalJSONValue(data)
		if err != nil {
			return nil, refParseError(ref, err)
		}
		return v, nil
	case ".json5":
		// The JSON5 parser only yields Go maps; their key order is
		// gone, so the converted objects fall back to sorted keys.
		var v any
		if err := json5.Unmarshal(data, &v); err != nil {
			return nil, refParseError(ref, err)
		}
		return omap.FromUnordered(v), nil
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, refParseError(ref, err)
		}
		v, err := omap.DecodeNode(&node)
		if err != nil {
			return nil, refParseError(ref, err)
		}
		return v, nil
	default:
		return string(data), nil
	}
}

func refParseError(ref string, cause error) error {
	return &xerr.ConfigError{
		Kind:    xerr.SchemaViolation,
		Name:    ref,
		Message: "cannot parse referenced file",
		Cause:   cause,
	}
}

// resolveRefsInTree walks the raw spec tree and replaces every "@path"
// content value under files (root and per-repo) with the referenced
// file's parsed content. Resolution happens before validation.
func resolveRefsInTree(root map[string]any, configDir string) error {
	if files, ok := root["files"].(map[string]any); ok {
		if err := resolveRefsInFiles(files, configDir); err != nil {
			return err
		}
	}
	repos, _ := root["repos"].([]any)
	for _, r := range repos {
		repo, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if files, ok := repo["files"].(map[string]any); ok {
			if err := resolveRefsInFiles(files, configDir); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveRefsInFiles(files map[string]any, configDir string) error {
	for _, v := range files {
		spec, ok := v.(map[string]any)
		if !ok {
			continue
		}
		ref, ok := spec["content"].(string)
		if !ok || !strings.HasPrefix(ref, "@") {
			continue
		}
		resolved, err := resolveFileRef(ref, configDir)
		if err != nil {
			return err
		}
		spec["content"] = resolved
	}
	return nil
}
