// Package envsub implements the environment-variable interpolation pass
// applied to every string leaf of a parsed spec before validation.
package envsub

import (
	"os"
	"regexp"
	"strings"

	"github.com/archmagece/xfg/internal/omap"
	"github.com/archmagece/xfg/internal/xerr"
)

// escapedRef matches the escape form $${...}, which yields a literal
// ${...} with one '$' removed.
var escapedRef = regexp.MustCompile(`\$\$(\{[^}]*\})`)

// ref matches ${NAME}, ${NAME:-default}, and ${NAME:?msg}.
var ref = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)

// Lookup resolves an environment variable by name. os.LookupEnv satisfies
// this; tests substitute a map-backed implementation.
type Lookup func(name string) (string, bool)

// OSLookup resolves variables from the process environment.
func OSLookup(name string) (string, bool) { return os.LookupEnv(name) }

// Expand substitutes every ${...} reference in s. In strict mode, an
// unadorned ${NAME} missing from the environment aborts with a
// MissingEnv ConfigError; non-strict leaves the placeholder untouched.
func Expand(s string, lookup Lookup, strict bool) (string, error) {
	// Protect escaped refs from the main substitution pass by placing a
	// sentinel that cannot itself be re-matched, then restoring afterward.
	const sentinel = "\x00XFG_DOLLAR\x00"

	protected := escapedRef.ReplaceAllString(s, sentinel+"$1")

	var firstErr error
	result := ref.ReplaceAllStringFunc(protected, func(match string) string {
		if firstErr != nil {
			return match
		}

		groups := ref.FindStringSubmatch(match)
		name := groups[1]
		modifier := groups[2]

		val, ok := lookup(name)

		switch {
		case strings.HasPrefix(modifier, ":-"):
			def := modifier[2:]
			if !ok || val == "" {
				return def
			}
			return val
		case strings.HasPrefix(modifier, ":?"):
			msg := modifier[2:]
			if !ok || val == "" {
				firstErr = &xerr.ConfigError{
					Kind:    xerr.RequiredEnv,
					Name:    name,
					Message: msg,
				}
				return match
			}
			return val
		default:
			if !ok {
				if strict {
					firstErr = &xerr.ConfigError{
						Kind:    xerr.MissingEnv,
						Name:    name,
						Message: "environment variable not set",
					}
					return match
				}
				return match
			}
			return val
		}
	})

	if firstErr != nil {
		return "", firstErr
	}

	result = strings.ReplaceAll(result, sentinel, "$")
	return result, nil
}

// Walk applies Expand to every string leaf reachable from v, which must
// be built from *omap.Map, map[string]any, []any, string, and scalar
// types. It returns a new value tree; v is not mutated, and key order is
// preserved.
func Walk(v any, lookup Lookup, strict bool) (any, error) {
	switch t := v.(type) {
	case string:
		return Expand(t, lookup, strict)
	case *omap.Map:
		out := omap.New()
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			expanded, err := Walk(val, lookup, strict)
			if err != nil {
				return nil, err
			}
			out.Set(k, expanded)
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			expanded, err := Walk(val, lookup, strict)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			expanded, err := Walk(val, lookup, strict)
			if err != nil {
				return nil, err
			}
			out[ks] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			expanded, err := Walk(val, lookup, strict)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}
