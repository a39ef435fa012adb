// Package merge implements the pure, deterministic deep-merge used to
// combine a FileSpec's base content with per-repo overlays. Arrays honor
// the $arrayMerge directive and per-file mergeStrategy; $-prefixed
// directive keys are stripped from the final product. Merged objects
// keep base keys first in their original order, then overlay-only keys
// in theirs.
package merge

import (
	"fmt"
	"strings"

	"github.com/archmagece/xfg/internal/omap"
)

// Strategy is the array-merge policy applied when both sides of a merge
// contain an array at the same position.
type Strategy string

const (
	Replace Strategy = "replace"
	Append  Strategy = "append"
	Prepend Strategy = "prepend"
)

// ParseStrategy validates a string against the known strategies.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Replace, Append, Prepend:
		return Strategy(s), nil
	case "":
		return Replace, nil
	default:
		return "", fmt.Errorf("unknown array merge strategy: %q", s)
	}
}

// Context threads the active default strategies through a recursive merge.
// FileStrategy is the FileSpec.mergeStrategy for the file currently being
// merged; Default is the strategy used when no more specific directive
// applies.
type Context struct {
	FileStrategy Strategy
	Default      Strategy
}

func (c Context) effective(siblingOverride Strategy) Strategy {
	if siblingOverride != "" {
		return siblingOverride
	}
	if c.FileStrategy != "" {
		return c.FileStrategy
	}
	if c.Default != "" {
		return c.Default
	}
	return Replace
}

// Merge combines base and overlay, recursing into objects, applying the
// array-merge strategy to arrays, and letting overlay scalars win. The
// inputs are never mutated; stripDirectives removes every $-prefixed key
// from the result before it is returned to the caller.
func Merge(base, overlay any, ctx Context) (any, error) {
	merged, err := mergeValue(base, overlay, "", ctx)
	if err != nil {
		return nil, err
	}
	return stripDirectives(merged), nil
}

func mergeValue(base, overlay any, siblingArrayStrategy Strategy, ctx Context) (any, error) {
	if overlay == nil {
		return base, nil
	}
	if base == nil {
		return overlay, nil
	}

	if wrapped, ok := asWrappedArray(overlay); ok {
		strategy, err := ParseStrategy(wrapped.strategy)
		if err != nil {
			return nil, err
		}
		baseArr, _ := base.([]any)
		return mergeArray(baseArr, wrapped.values, strategy), nil
	}

	baseMap, baseIsMap := asObject(base)
	overlayMap, overlayIsMap := asObject(overlay)
	if baseIsMap && overlayIsMap {
		return mergeObject(baseMap, overlayMap, ctx)
	}

	baseArr, baseIsArr := base.([]any)
	overlayArr, overlayIsArr := overlay.([]any)
	if baseIsArr || overlayIsArr {
		strategy := ctx.effective(siblingArrayStrategy)
		return mergeArray(baseArr, overlayArr, strategy), nil
	}

	// Scalars: overlay wins.
	return overlay, nil
}

func mergeObject(base, overlay *omap.Map, ctx Context) (*omap.Map, error) {
	siblingStrategy := Strategy("")
	if s, ok := overlay.Get("$arrayMerge"); ok {
		str, _ := s.(string)
		parsed, err := ParseStrategy(str)
		if err != nil {
			return nil, err
		}
		siblingStrategy = parsed
	}

	result := omap.New()

	// Base keys first in their original order, overlapping keys merged
	// in place.
	for _, k := range base.Keys() {
		if strings.HasPrefix(k, "$") {
			continue
		}
		bv, _ := base.Get(k)
		ov, overlaid := overlay.Get(k)
		if !overlaid {
			result.Set(k, bv)
			continue
		}
		merged, err := mergeValue(bv, ov, siblingStrategy, ctx)
		if err != nil {
			return nil, err
		}
		result.Set(k, merged)
	}

	// Then overlay-only keys in their original order.
	for _, k := range overlay.Keys() {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if _, seen := result.Get(k); seen {
			continue
		}
		ov, _ := overlay.Get(k)
		if wrapped, ok := asWrappedArray(ov); ok {
			result.Set(k, wrapped.values)
			continue
		}
		result.Set(k, stripDirectives(ov))
	}

	return result, nil
}

func mergeArray(base, overlay []any, strategy Strategy) []any {
	switch strategy {
	case Append:
		out := make([]any, 0, len(base)+len(overlay))
		out = append(out, base...)
		out = append(out, overlay...)
		return out
	case Prepend:
		out := make([]any, 0, len(base)+len(overlay))
		out = append(out, overlay...)
		out = append(out, base...)
		return out
	default: // Replace
		if overlay == nil {
			return base
		}
		return overlay
	}
}

type wrappedArray struct {
	strategy string
	values   []any
}

func asWrappedArray(v any) (wrappedArray, bool) {
	m, ok := asObject(v)
	if !ok {
		return wrappedArray{}, false
	}
	strategyValue, hasStrategy := m.Get("$arrayMerge")
	strategy, strategyIsString := strategyValue.(string)
	valuesValue, hasValues := m.Get("values")
	values, valuesIsSeq := valuesValue.([]any)
	if !hasStrategy || !strategyIsString || !hasValues || !valuesIsSeq {
		return wrappedArray{}, false
	}
	return wrappedArray{strategy: strategy, values: values}, true
}

// asObject views v as an ordered map. Plain Go maps (from callers that
// did not come through the loader) are converted with sorted keys, the
// only deterministic order they can offer.
func asObject(v any) (*omap.Map, bool) {
	switch t := v.(type) {
	case *omap.Map:
		return t, true
	case map[string]any, map[any]any:
		m, ok := omap.FromUnordered(t).(*omap.Map)
		return m, ok
	default:
		return nil, false
	}
}

// stripDirectives removes every $-prefixed key from v, recursively.
func stripDirectives(v any) any {
	switch t := v.(type) {
	case *omap.Map:
		out := omap.New()
		for _, k := range t.Keys() {
			if strings.HasPrefix(k, "$") {
				continue
			}
			val, _ := t.Get(k)
			out.Set(k, stripDirectives(val))
		}
		return out
	case map[string]any, map[any]any:
		m, _ := asObject(t)
		return stripDirectives(m)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stripDirectives(val)
		}
		return out
	default:
		return v
	}
}

// MergeText merges FileSpec.content when it takes the string or
// string-sequence text form. Strings are split on newline only when the
// other side is a sequence; otherwise both sides merge as whole units.
func MergeText(base, overlay any, strategy Strategy) any {
	baseIsSeq := isSequence(base)
	overlayIsSeq := isSequence(overlay)

	if !baseIsSeq && !overlayIsSeq {
		switch strategy {
		case Append:
			return joinText(base, overlay)
		case Prepend:
			return joinText(overlay, base)
		default:
			if overlay == nil {
				return base
			}
			return overlay
		}
	}

	baseSeq := toTextSequence(base, overlayIsSeq)
	overlaySeq := toTextSequence(overlay, baseIsSeq)
	return mergeArray(baseSeq, overlaySeq, strategy)
}

func isSequence(v any) bool {
	_, ok := v.([]any)
	return ok
}

func toTextSequence(v any, splitIfString bool) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case string:
		if splitIfString {
			lines := strings.Split(t, "\n")
			out := make([]any, len(lines))
			for i, l := range lines {
				out[i] = l
			}
			return out
		}
		return []any{t}
	default:
		return []any{t}
	}
}

func joinText(a, b any) any {
	as, aok := a.(string)
	bs, bok := b.(string)
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case aok && bok:
		return as + "\n" + bs
	default:
		return b
	}
}
