// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package omap provides the order-preserving string-keyed map used for
// every content object flowing through the sync engine. Merged objects
// must render with base keys first in declaration order, then new
// overlay keys in theirs, so content cannot live in Go's unordered maps
// between parse and render. The type round-trips key order through both
// yaml.v3 (node decode/encode) and encoding/json (token-stream decode,
// ordered marshal).
package omap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed map that remembers insertion order.
type Map struct {
	keys   []string
	values map[string]any
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[string]any)}
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The slice is shared; do not
// mutate it.
func (m *Map) Keys() []string { return m.keys }

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores key=value, appending the key on first insertion and
// keeping its original position on update.
func (m *Map) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key, preserving the order of the remaining keys.
func (m *Map) Delete(key string) {
	if _, exists := m.values[key]; !exists {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// DecodeNode converts a yaml.Node into an order-preserving value tree:
// mappings become *Map, sequences []any, scalars their decoded Go
// value. This is how content objects enter the engine from both the
// spec document and .yaml/.json file references (JSON being a YAML
// subset).
func DecodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DecodeNode(node.Content[0])
	case yaml.AliasNode:
		return DecodeNode(node.Alias)
	case yaml.MappingNode:
		m := New()
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key string
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			value, err := DecodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(key, value)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			value, err := DecodeNode(child)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// FromUnordered converts a plain map tree into a Map tree. Keys are
// sorted because the source carries no order; used for parsers that
// only produce Go maps.
func FromUnordered(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := New()
		for _, k := range keys {
			m.Set(k, FromUnordered(t[k]))
		}
		return m
	case map[any]any:
		converted := make(map[string]any, len(t))
		for k, val := range t {
			converted[fmt.Sprint(k)] = val
		}
		return FromUnordered(converted)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = FromUnordered(val)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON emits the entries in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encodeJSONValue(&buf, m.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeJSONValue marshals without HTML escaping, so content strings
// like "<root>" survive untouched.
func encodeJSONValue(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline the object syntax cannot contain.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSONValue decodes any JSON value, preserving key order in
// every object it contains.
func UnmarshalJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return decodeJSONValue(dec)
}

// UnmarshalJSON decodes a JSON object preserving its key order, via the
// token stream rather than an unordered map.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("omap: expected object, got %v", tok)
	}

	*m = *New()
	return decodeJSONObject(dec, m)
}

func decodeJSONObject(dec *json.Decoder, m *Map) error {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("omap: expected object key, got %v", keyTok)
		}
		value, err := decodeJSONValue(dec)
		if err != nil {
			return err
		}
		m.Set(key, value)
	}
	// Consume the closing '}'.
	_, err := dec.Token()
	return err
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			child := New()
			if err := decodeJSONObject(dec, child); err != nil {
				return nil, err
			}
			return child, nil
		case '[':
			var out []any
			for dec.More() {
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			if out == nil {
				out = []any{}
			}
			return out, nil
		default:
			return nil, fmt.Errorf("omap: unexpected delimiter %v", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return t, nil
	}
}

// MarshalYAML renders the Map as a mapping node with keys in insertion
// order, so yaml.v3 does not sort them.
func (m *Map) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(k); err != nil {
			return nil, err
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}
