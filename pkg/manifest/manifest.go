// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package manifest reads and writes the .xfg.json file committed to each
// target repository. The manifest records, per config ID, the files that
// config wrote with orphan tracking enabled, so a later run can delete
// what the spec no longer declares. Foreign config namespaces are
// preserved byte-for-byte across a rewrite.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the manifest's fixed location at the repository root.
const FileName = ".xfg.json"

// Version is the current manifest schema version.
const Version = 2

// Manifest is the parsed .xfg.json. Entries for configs other than the
// active one are kept as raw JSON so a rewrite cannot reorder or
// reformat them.
type Manifest struct {
	Version int
	Configs map[string]json.RawMessage
}

// Read loads the manifest from the repository rooted at dir. A missing
// file yields an empty manifest. A version-1 manifest (flat file list)
// is upgraded by wrapping the list under activeID.
func Read(dir, activeID string) (*Manifest, error) {
	m := &Manifest{Version: Version, Configs: map[string]json.RawMessage{}}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var raw struct {
		Version int                        `json:"version"`
		Configs map[string]json.RawMessage `json:"configs"`
		Files   []string                   `json:"files"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if raw.Version < Version {
		if len(raw.Files) > 0 {
			entry, err := json.Marshal(raw.Files)
			if err != nil {
				return nil, fmt.Errorf("upgrade manifest: %w", err)
			}
			m.Configs[activeID] = entry
		}
		return m, nil
	}

	if raw.Configs != nil {
		m.Configs = raw.Configs
	}
	return m, nil
}

// Tracked returns the sorted file list recorded for configID, or nil.
func (m *Manifest) Tracked(configID string) []string {
	raw, ok := m.Configs[configID]
	if !ok {
		return nil
	}
	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		return nil
	}
	return paths
}

// Orphans returns the paths tracked for configID that are absent from
// the current plan's tracked set, sorted.
func (m *Manifest) Orphans(configID string, planned []string) []string {
	current := make(map[string]bool, len(planned))
	for _, p := range planned {
		current[p] = true
	}
	var orphans []string
	for _, p := range m.Tracked(configID) {
		if !current[p] {
			orphans = append(orphans, p)
		}
	}
	sort.Strings(orphans)
	return orphans
}

// SetTracked replaces configID's entry with the given paths, sorted and
// deduplicated. An empty set removes the entry.
func (m *Manifest) SetTracked(configID string, paths []string) error {
	if len(paths) == 0 {
		delete(m.Configs, configID)
		return nil
	}

	seen := make(map[string]bool, len(paths))
	unique := make([]string, 0, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	sort.Strings(unique)

	entry, err := json.Marshal(unique)
	if err != nil {
		return err
	}
	m.Configs[configID] = entry
	return nil
}

// Empty reports whether no config tracks any files.
func (m *Manifest) Empty() bool {
	return len(m.Configs) == 0
}

// Write serializes the manifest back to dir, or removes the file when
// nothing is tracked anymore. Config keys are emitted sorted; each
// entry's raw JSON is written untouched.
func (m *Manifest) Write(dir string) error {
	path := filepath.Join(dir, FileName)

	if m.Empty() {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders the manifest JSON: 2-space indent, sorted config keys,
// trailing newline.
func (m *Manifest) Marshal() ([]byte, error) {
	keys := make([]string, 0, len(m.Configs))
	for k := range m.Configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	fmt.Fprintf(&buf, "  \"version\": %d,\n", Version)
	buf.WriteString("  \"configs\": {")
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		// Entries are written exactly as stored so foreign namespaces
		// survive a rewrite byte-for-byte.
		buf.Write(bytes.TrimSpace(m.Configs[k]))
	}
	buf.WriteString("\n  }\n}\n")
	return buf.Bytes(), nil
}
