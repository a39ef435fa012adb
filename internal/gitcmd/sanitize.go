package gitcmd

import (
	"fmt"
	"regexp"
	"strings"
)

// Dangerous patterns that could enable command injection or path traversal.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[;&|><$]`),                // Command separators and redirections
	regexp.MustCompile(`\$\(`),                    // Command substitution $(...)
	regexp.MustCompile("`"),                       // Backtick command substitution
	regexp.MustCompile(`\.\./`),                   // Path traversal (relative)
	regexp.MustCompile(`^/(?:etc|usr|bin|sbin)/`), // System directories
	regexp.MustCompile(`\x00`),                    // Null bytes
	regexp.MustCompile(`\r|\n`),                   // Newlines (could break parsing)
}

// safeGitFlags whitelists the git flags the sync engine passes: clone,
// default-branch probing, sync-branch management, staging, committing,
// executable-bit marking, and pushing. Anything else is rejected before
// it reaches exec.
var safeGitFlags = map[string]bool{
	// Common flags
	"--help":    true,
	"--version": true,
	"--verbose": true,
	"--quiet":   true,

	// Clone flags
	"--branch":        true,
	"--depth":         true,
	"--single-branch": true,

	// Status flags
	"--porcelain": true,

	// Commit flags
	"--message":     true,
	"--no-verify":   true,
	"--allow-empty": true,

	// Push flags
	"--force":        true,
	"--delete":       true,
	"--dry-run":      true,
	"--set-upstream": true,

	// Branch / checkout flags
	"--track":        true,
	"--show-current": true,

	// Staging flags
	"--all": true,

	// Plumbing flags (default-branch probe, remote-branch probe,
	// executable-bit marking)
	"--verify":     true,
	"--abbrev-ref": true,
	"--heads":      true,
	"--exit-code":  true,
	"--chmod":      true,
}

// SanitizeArgs validates git command arguments before execution.
// Returns an error if any argument contains dangerous patterns or an
// unknown flag; returns the sanitized arguments otherwise.
func SanitizeArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}

	sanitized := make([]string, 0, len(args))

	for i, arg := range args {
		for _, pattern := range dangerousPatterns {
			if pattern.MatchString(arg) {
				return nil, fmt.Errorf("argument %d contains dangerous pattern: %s", i, arg)
			}
		}

		if strings.HasPrefix(arg, "-") {
			if err := validateFlag(arg, safeGitFlags, "Git"); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
		}

		sanitized = append(sanitized, strings.TrimSpace(arg))
	}

	return sanitized, nil
}

// validateFlag checks a flag against a whitelist. Flags with values
// (e.g. --chmod=+x) are validated on the name before '='.
func validateFlag(flag string, whitelist map[string]bool, kind string) error {
	// The '--' separator between flags and paths is always allowed.
	if flag == "--" {
		return nil
	}

	flagName := flag
	if idx := strings.Index(flag, "="); idx != -1 {
		flagName = flag[:idx]
	}

	if !whitelist[flagName] {
		// Single-letter short flags (-b, -v, ...) are allowed.
		if len(flagName) == 2 && flagName[0] == '-' && flagName[1] != '-' {
			return nil
		}
		return fmt.Errorf("unknown or unsafe %s flag: %s", kind, flagName)
	}

	return nil
}

// SanitizeURL validates a Git repository URL.
// This ensures the URL is in a safe format (HTTPS, SSH, or file).
func SanitizeURL(url string) error {
	if url == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(url) {
			return fmt.Errorf("URL contains dangerous pattern")
		}
	}

	validSchemes := []string{
		"https://",
		"http://",
		"ssh://",
		"git://",
		"git@", // SSH format (git@github.com:...)
		"file://",
		"/",  // Local path
		"./", // Relative path
	}

	isValid := false
	for _, scheme := range validSchemes {
		if strings.HasPrefix(url, scheme) {
			isValid = true
			break
		}
	}

	if !isValid {
		return fmt.Errorf("URL has invalid or unsupported scheme: %s", url)
	}

	// Additional validation for SSH URLs
	if strings.HasPrefix(url, "git@") && !strings.Contains(url, ":") {
		return fmt.Errorf("invalid SSH URL format: %s", url)
	}

	return nil
}

// SanitizeCommitMessage validates a commit message.
func SanitizeCommitMessage(message string) error {
	if message == "" {
		return fmt.Errorf("commit message cannot be empty")
	}

	if strings.Contains(message, "\x00") {
		return fmt.Errorf("commit message contains null byte")
	}

	if len(message) > 10000 {
		return fmt.Errorf("commit message too long (max 10000 characters)")
	}

	return nil
}

// SanitizeBranchName validates a Git branch name.
// This ensures the branch name follows Git conventions.
func SanitizeBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}

	invalidPatterns := []*regexp.Regexp{
		regexp.MustCompile(`^\.`),           // Cannot start with dot
		regexp.MustCompile(`\.\.`),          // Cannot contain double dots
		regexp.MustCompile(`[~^:?*\[\]\\]`), // Cannot contain special chars
		regexp.MustCompile(`\s`),            // Cannot contain whitespace
		regexp.MustCompile(`^/|/$|//`),      // Cannot start/end with slash or have double slashes
		regexp.MustCompile(`\.lock$`),       // Cannot end with .lock
	}

	for _, pattern := range invalidPatterns {
		if pattern.MatchString(name) {
			return fmt.Errorf("branch name contains invalid pattern: %s", name)
		}
	}

	if len(name) > 255 {
		return fmt.Errorf("branch name too long (max 255 characters)")
	}

	return nil
}
