// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgedriver

import (
	"fmt"
	"os"
	"strings"
)

// Touched is one path the sync changed, for the PR body's file list.
type Touched struct {
	Path    string
	Deleted bool
}

// DefaultBodyTemplate is used when the spec names no prTemplate.
const DefaultBodyTemplate = `Automated configuration sync.

## Files

{{FILES}}
`

// RenderBody fills the {{FILES}} placeholder with a bullet list of the
// touched paths, marking deleted orphans.
func RenderBody(tmpl string, files []Touched) string {
	if tmpl == "" {
		tmpl = DefaultBodyTemplate
	}

	var list strings.Builder
	for _, f := range files {
		if f.Deleted {
			fmt.Fprintf(&list, "- `%s` **[DELETED]**\n", f.Path)
		} else {
			fmt.Fprintf(&list, "- `%s`\n", f.Path)
		}
	}

	return strings.ReplaceAll(tmpl, "{{FILES}}", strings.TrimRight(list.String(), "\n"))
}

// WriteBodyFile renders the PR body to a temp file and returns its path
// with a cleanup func. The body can contain arbitrary user text, so it
// always travels by file, never argv.
func WriteBodyFile(tmpl string, files []Touched) (string, func(), error) {
	f, err := os.CreateTemp("", "xfg-pr-body-*.md")
	if err != nil {
		return "", nil, fmt.Errorf("create body file: %w", err)
	}

	body := RenderBody(tmpl, files)
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write body file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write body file: %w", err)
	}

	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}

// LoadBodyTemplate reads the spec's prTemplate file, falling back to the
// default when the spec names none.
func LoadBodyTemplate(path string) (string, error) {
	if path == "" {
		return DefaultBodyTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pr template: %w", err)
	}
	return string(data), nil
}
