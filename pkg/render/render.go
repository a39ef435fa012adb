// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package render serializes a planned file's merged content into the
// exact bytes written to the target repository. Output is deterministic:
// the same content, flags, and repo identity always produce the same
// bytes.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/archmagece/xfg/internal/omap"
	"github.com/archmagece/xfg/pkg/forge"
	"github.com/archmagece/xfg/pkg/template"
	"github.com/archmagece/xfg/pkg/xfgconfig"
)

// File is a rendered file ready to be written into a workspace.
type File struct {
	Path           string
	Bytes          []byte
	Executable     bool
	CreateOnly     bool
	DeleteOrphaned bool
}

// BuiltinsFor assembles the template built-ins for one repo. date is the
// ISO-8601 UTC day frozen at run start.
func BuiltinsFor(info forge.Info, gitURL, fileName, date string) template.Builtins {
	return template.Builtins{
		RepoName:     info.Repo,
		RepoOwner:    info.Owner,
		RepoFullName: info.FullName(),
		RepoURL:      gitURL,
		RepoPlatform: string(info.Platform),
		RepoHost:     info.Host,
		FileName:     fileName,
		Date:         date,
	}
}

// Render produces the on-disk bytes for one planned file. Template
// expansion runs first when requested, then the format is chosen from
// the target extension.
func Render(planned *xfgconfig.PlannedFile, info forge.Info, gitURL, date string) (*File, error) {
	content := planned.Content

	if planned.Template {
		builtins := BuiltinsFor(info, gitURL, filepath.Base(planned.Path), date)
		expanded, err := expandContent(content, builtins, planned.RepoVars, planned.FileVars)
		if err != nil {
			return nil, err
		}
		content = expanded
	}

	data, err := renderBytes(planned.Path, content, planned.Header, planned.SchemaURL)
	if err != nil {
		return nil, err
	}

	return &File{
		Path:           planned.Path,
		Bytes:          data,
		Executable:     planned.Executable,
		CreateOnly:     planned.CreateOnly,
		DeleteOrphaned: planned.DeleteOrphaned,
	}, nil
}

func expandContent(content any, builtins template.Builtins, repoVars, fileVars template.Vars) (any, error) {
	switch t := content.(type) {
	case nil:
		return nil, nil
	case string:
		return template.Expand(t, builtins, repoVars, fileVars)
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			expanded, err := expandContent(v, builtins, repoVars, fileVars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case *omap.Map:
		out := omap.New()
		for _, k := range t.Keys() {
			v, _ := t.Get(k)
			expanded, err := expandContent(v, builtins, repoVars, fileVars)
			if err != nil {
				return nil, err
			}
			out.Set(k, expanded)
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			expanded, err := expandContent(v, builtins, repoVars, fileVars)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	default:
		return content, nil
	}
}

func renderBytes(path string, content any, header []string, schemaURL string) ([]byte, error) {
	if content == nil {
		return []byte{}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		return renderJSON(content)
	case ".yaml", ".yml":
		return renderYAML(content, header, schemaURL)
	default:
		return renderText(content)
	}
}

// renderJSON emits 2-space-indented JSON. Ordered maps marshal their
// keys in insertion order; plain Go maps (content that never passed
// through the loader) fall back to encoding/json's sorted keys.
func renderJSON(content any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(content); err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	// Encode already appends the trailing newline.
	return buf.Bytes(), nil
}

// renderYAML emits the optional yaml-language-server schema directive,
// then each header line as a comment, then a blank line, then the
// block-style document with 2-space indent.
func renderYAML(content any, header []string, schemaURL string) ([]byte, error) {
	var buf bytes.Buffer

	if schemaURL != "" {
		fmt.Fprintf(&buf, "# yaml-language-server: $schema=%s\n", schemaURL)
	}
	for _, line := range header {
		if line == "" {
			buf.WriteString("#\n")
			continue
		}
		fmt.Fprintf(&buf, "# %s\n", line)
	}
	if schemaURL != "" || len(header) > 0 {
		buf.WriteByte('\n')
	}

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(content); err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func renderText(content any) ([]byte, error) {
	switch t := content.(type) {
	case string:
		if strings.HasSuffix(t, "\n") {
			return []byte(t), nil
		}
		return []byte(t + "\n"), nil
	case []any:
		var buf bytes.Buffer
		for _, line := range t {
			fmt.Fprintf(&buf, "%v\n", line)
		}
		return buf.Bytes(), nil
	default:
		return []byte(fmt.Sprintf("%v\n", t)), nil
	}
}
