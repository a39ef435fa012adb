// Package template expands ${xfg:<dotted>} references over a FileSpec's
// content once template:true and the repo's identity are known. Names
// resolve against the built-ins first, then the per-repo vars, then the
// file-level vars; the first match wins.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/archmagece/xfg/internal/xerr"
)

var ref = regexp.MustCompile(`\$\{xfg:([A-Za-z0-9_.]+)\}`)

// Builtins holds the fixed, closed set of variables always available to
// a template, frozen for the whole run.
type Builtins struct {
	RepoName     string
	RepoOwner    string
	RepoFullName string
	RepoURL      string
	RepoPlatform string
	RepoHost     string
	FileName     string
	Date         string // ISO-8601 UTC day, frozen at run start
}

func (b Builtins) lookup(dotted string) (string, bool) {
	switch dotted {
	case "repo.name":
		return b.RepoName, true
	case "repo.owner":
		return b.RepoOwner, true
	case "repo.fullName":
		return b.RepoFullName, true
	case "repo.url":
		return b.RepoURL, true
	case "repo.platform":
		return b.RepoPlatform, true
	case "repo.host":
		return b.RepoHost, true
	case "file.name":
		return b.FileName, true
	case "date":
		return b.Date, true
	default:
		return "", false
	}
}

// Vars is a flat mapping of string→scalar used for per-repo and
// file-level vars. Values are stringified with fmt.Sprint.
type Vars map[string]any

func (v Vars) lookup(dotted string) (string, bool) {
	val, ok := v[dotted]
	if !ok {
		return "", false
	}
	return fmt.Sprint(val), true
}

// Expand substitutes every ${xfg:<dotted>} reference in s, resolving
// names against builtins first, then repoVars, then fileVars. An
// unresolved name produces a TemplateError{UnknownVariable}.
func Expand(s string, builtins Builtins, repoVars, fileVars Vars) (string, error) {
	var firstErr error

	result := ref.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		groups := ref.FindStringSubmatch(match)
		name := groups[1]

		if val, ok := builtins.lookup(name); ok {
			return val
		}
		if val, ok := repoVars.lookup(name); ok {
			return val
		}
		if val, ok := fileVars.lookup(name); ok {
			return val
		}

		firstErr = &xerr.TemplateError{Kind: xerr.UnknownVariable, Variable: name}
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// ExpandSequence applies Expand to each element of a string sequence,
// used when FileSpec.content is a string sequence rather than a single
// string.
func ExpandSequence(lines []string, builtins Builtins, repoVars, fileVars Vars) ([]string, error) {
	out := make([]string, len(lines))
	for i, l := range lines {
		expanded, err := Expand(l, builtins, repoVars, fileVars)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

// HasReferences reports whether s contains at least one ${xfg:...}
// reference, used by callers deciding whether expansion is worth the
// allocation.
func HasReferences(s string) bool {
	return strings.Contains(s, "${xfg:")
}
