// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package xfgconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/archmagece/xfg/internal/envsub"
	"github.com/archmagece/xfg/internal/omap"
	"github.com/archmagece/xfg/internal/xerr"
)

// LoadOptions configures the normalization pipeline.
type LoadOptions struct {
	// Lookup resolves environment variables; defaults to the process
	// environment.
	Lookup envsub.Lookup

	// NonStrict leaves unresolvable ${NAME} placeholders in place
	// instead of failing the load.
	NonStrict bool
}

func (o LoadOptions) lookup() envsub.Lookup {
	if o.Lookup != nil {
		return o.Lookup
	}
	return envsub.OSLookup
}

// Load reads a spec file and runs the full pipeline: parse, resolve file
// references, validate, expand git arrays, resolve inheritance, and
// env-interpolate. Any failure aborts before a single repo is touched.
func Load(path string, opts LoadOptions) (*NormalizedSpec, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return Normalize(spec, opts)
}

// LoadSpec runs the front half of the pipeline (parse through git-array
// expansion) and returns the typed, immutable Spec.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &xerr.ConfigError{
			Kind:    xerr.SchemaViolation,
			Name:    path,
			Message: "cannot read config file",
			Cause:   err,
		}
	}

	dir := filepath.Dir(path)
	return ParseSpec(data, dir)
}

// ParseSpec parses spec bytes with @refs resolved against configDir.
// Split out from LoadSpec so tests can feed literal documents.
func ParseSpec(data []byte, configDir string) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &xerr.ConfigError{
			Kind:    xerr.SchemaViolation,
			Message: "invalid YAML",
			Cause:   err,
		}
	}

	var raw any
	if err := doc.Decode(&raw); err != nil {
		return nil, &xerr.ConfigError{
			Kind:    xerr.SchemaViolation,
			Message: "invalid YAML",
			Cause:   err,
		}
	}

	root, ok := normalizeTree(raw).(map[string]any)
	if !ok {
		return nil, &xerr.ConfigError{
			Kind:    xerr.SchemaViolation,
			Message: "config root must be a mapping",
		}
	}

	if err := overlayOrderedContent(root, &doc); err != nil {
		return nil, err
	}

	if err := resolveRefsInTree(root, configDir); err != nil {
		return nil, err
	}

	if err := validateTree(root); err != nil {
		return nil, err
	}

	spec, err := decodeSpec(root, fileOrder(&doc))
	if err != nil {
		return nil, err
	}
	spec.Dir = configDir

	expandGitArrays(spec)
	return spec, nil
}

// fileOrder extracts the target paths under "files" in document order.
// The generic decode loses mapping order, and files must be written to
// the working tree in the order they appear in the spec.
func fileOrder(doc *yaml.Node) []string {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "files" {
			continue
		}
		files := root.Content[i+1]
		if files.Kind != yaml.MappingNode {
			return nil
		}
		order := make([]string, 0, len(files.Content)/2)
		for j := 0; j+1 < len(files.Content); j += 2 {
			order = append(order, files.Content[j].Value)
		}
		return order
	}
	return nil
}

// overlayOrderedContent replaces every content value in the generic
// tree with an order-preserving decode of the corresponding document
// node. The generic decode loses mapping order, and merged objects must
// render base keys in declaration order.
func overlayOrderedContent(root map[string]any, doc *yaml.Node) error {
	top := doc
	if top.Kind == yaml.DocumentNode && len(top.Content) > 0 {
		top = top.Content[0]
	}
	if top.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		switch top.Content[i].Value {
		case "files":
			if files, ok := root["files"].(map[string]any); ok {
				if err := overlayFilesNode(files, top.Content[i+1]); err != nil {
					return err
				}
			}
		case "repos":
			repos, _ := root["repos"].([]any)
			reposNode := top.Content[i+1]
			if reposNode.Kind != yaml.SequenceNode {
				continue
			}
			for j, repoNode := range reposNode.Content {
				if j >= len(repos) {
					break
				}
				repo, ok := repos[j].(map[string]any)
				if !ok {
					continue
				}
				if filesNode := mappingValue(repoNode, "files"); filesNode != nil {
					if files, ok := repo["files"].(map[string]any); ok {
						if err := overlayFilesNode(files, filesNode); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

func overlayFilesNode(files map[string]any, filesNode *yaml.Node) error {
	if filesNode.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(filesNode.Content); i += 2 {
		target := filesNode.Content[i].Value
		spec, ok := files[target].(map[string]any)
		if !ok {
			continue
		}
		contentNode := mappingValue(filesNode.Content[i+1], "content")
		if contentNode == nil {
			continue
		}
		decoded, err := omap.DecodeNode(contentNode)
		if err != nil {
			return err
		}
		spec["content"] = decoded
	}
	return nil
}

// mappingValue returns the value node for key inside a mapping node,
// or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// expandGitArrays clones every multi-URL RepoSpec into N single-URL
// RepoSpecs sharing all other fields.
func expandGitArrays(spec *Spec) {
	expanded := make([]*RepoSpec, 0, len(spec.Repos))
	for _, repo := range spec.Repos {
		if len(repo.Git) <= 1 {
			expanded = append(expanded, repo)
			continue
		}
		for _, url := range repo.Git {
			clone := *repo
			clone.Git = []string{url}
			expanded = append(expanded, &clone)
		}
	}
	spec.Repos = expanded
}

// normalizeTree rewrites map[any]any nodes (produced by yaml for
// non-string or merged keys) into map[string]any so the rest of the
// pipeline handles one map shape.
func normalizeTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeTree(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeTree(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeTree(val)
		}
		return out
	default:
		return v
	}
}
