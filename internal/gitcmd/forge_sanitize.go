package gitcmd

import (
	"fmt"
	"strings"
)

// safeForgeFlags whitelists the gh/az/glab flags pkg/forgedriver
// passes. Unlike SanitizeArgs, this validator only inspects flags:
// free-text values (PR titles, bypass reasons, body text) reach
// exec.Command as ordinary argv elements and are never interpolated
// into a shell line, so they need no character-level scrutiny.
var safeForgeFlags = map[string]bool{
	// gh pr
	"--repo":          true,
	"--title":         true,
	"--body-file":     true,
	"--base":          true,
	"--head":          true,
	"--merge":         true,
	"--squash":        true,
	"--rebase":        true,
	"--auto":          true,
	"--admin":         true,
	"--delete-branch": true,

	// az repos pr
	"--organization":         true,
	"--project":              true,
	"--repository":           true,
	"--source-branch":        true,
	"--target-branch":        true,
	"--delete-source-branch": true,
	"--bypass-policy":        true,
	"--bypass-policy-reason": true,
	"--auto-complete":        true,
	"--description":          true,
	"--status":               true,
	"--id":                   true,
	"--output":               true,
	"--query":                true,

	// glab mr
	"--description-file":     true,
	"--remove-source-branch": true,
	"--auto-merge":           true,
	"--yes":                  true,
}

// SanitizeForgeArgs validates argv destined for gh, az, or glab: every
// flag must be whitelisted, non-flag values pass through untouched.
func SanitizeForgeArgs(args []string) ([]string, error) {
	sanitized := make([]string, 0, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") && arg != "-" {
			if err := validateFlag(arg, safeForgeFlags, "forge CLI"); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
		}
		sanitized = append(sanitized, arg)
	}
	return sanitized, nil
}
