package gitcmd

import (
	"reflect"
	"strings"
	"testing"
)

func TestSanitizeArgsAllowsWorkspaceCommands(t *testing.T) {
	// Every argv the git workspace actually issues must pass.
	commands := [][]string{
		{"clone", "git@github.com:org/repo.git", "/tmp/xfg/org-repo"},
		{"remote", "show", "origin"},
		{"rev-parse", "--verify", "--quiet", "origin/main"},
		{"ls-remote", "--heads", "origin", "chore/sync-config"},
		{"fetch", "origin", "chore/sync-config"},
		{"checkout", "--track", "origin/chore/sync-config"},
		{"checkout", "-b", "chore/sync-config"},
		{"status", "--porcelain"},
		{"add", "--all"},
		{"add", "--", "scripts/setup.sh"},
		{"update-index", "--chmod=+x", "--", "scripts/setup.sh"},
		{"commit", "--message", "chore: sync 2 file(s) via xfg [config]"},
		{"push", "origin", "chore/sync-config", "--force"},
		{"push", "origin", "--delete", "chore/sync-config"},
	}

	for _, args := range commands {
		got, err := SanitizeArgs(args)
		if err != nil {
			t.Errorf("SanitizeArgs(%v): %v", args, err)
			continue
		}
		if !reflect.DeepEqual(got, args) {
			t.Errorf("SanitizeArgs(%v) = %v", args, got)
		}
	}
}

func TestSanitizeArgsRejectsDangerousPatterns(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"command separator", []string{"status", "; rm -rf /"}},
		{"pipe", []string{"log", "| tee /tmp/x"}},
		{"command substitution", []string{"checkout", "$(whoami)"}},
		{"backtick", []string{"checkout", "`whoami`"}},
		{"path traversal", []string{"add", "../../etc/passwd"}},
		{"system directory", []string{"add", "/etc/shadow"}},
		{"null byte", []string{"commit", "a\x00b"}},
		{"newline", []string{"checkout", "main\nrm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SanitizeArgs(tt.args); err == nil {
				t.Errorf("SanitizeArgs(%v) accepted dangerous input", tt.args)
			}
		})
	}
}

func TestSanitizeArgsRejectsUnknownFlags(t *testing.T) {
	for _, args := range [][]string{
		{"push", "--receive-pack=/tmp/evil"},
		{"clone", "--upload-pack=/tmp/evil", "url", "dir"},
		{"log", "--output=/tmp/x"},
		{"commit", "--amend"}, // real git flag, but not one this tool issues
	} {
		if _, err := SanitizeArgs(args); err == nil {
			t.Errorf("SanitizeArgs(%v) accepted a non-whitelisted flag", args)
		}
	}
}

func TestSanitizeArgsAllowsShortFlagsAndSeparator(t *testing.T) {
	if _, err := SanitizeArgs([]string{"checkout", "-b", "feature"}); err != nil {
		t.Errorf("short flag rejected: %v", err)
	}
	if _, err := SanitizeArgs([]string{"add", "--", "README.md"}); err != nil {
		t.Errorf("'--' separator rejected: %v", err)
	}
}

func TestSanitizeForgeArgsAllowsDriverCommands(t *testing.T) {
	// Every argv the forge drivers issue must pass.
	commands := [][]string{
		{"pr", "create", "--repo", "acme/foo", "--head", "chore/sync-config", "--base", "main",
			"--title", "chore: sync 2 file(s) via xfg [config]", "--body-file", "/tmp/xfg-pr-body.md"},
		{"pr", "merge", "https://github.com/acme/foo/pull/1", "--repo", "acme/foo",
			"--squash", "--auto", "--delete-branch"},
		{"pr", "close", "https://github.com/acme/foo/pull/1", "--repo", "acme/foo", "--delete-branch"},
		{"repos", "pr", "list", "--organization", "https://dev.azure.com/org", "--project", "proj",
			"--repository", "repo", "--source-branch", "chore/sync-config", "--status", "active", "--output", "json"},
		{"repos", "pr", "update", "--organization", "https://dev.azure.com/org", "--id", "42",
			"--status", "completed", "--bypass-policy", "true", "--bypass-policy-reason", "policy exemption approved"},
		{"mr", "create", "--repo", "group/sub/repo", "--source-branch", "chore/sync-config",
			"--target-branch", "main", "--title", "sync", "--description-file", "/tmp/body.md", "--yes"},
		{"mr", "merge", "chore/sync-config", "--repo", "group/sub/repo", "--squash",
			"--auto-merge", "--remove-source-branch", "--yes"},
	}

	for _, args := range commands {
		got, err := SanitizeForgeArgs(args)
		if err != nil {
			t.Errorf("SanitizeForgeArgs(%v): %v", args, err)
			continue
		}
		if !reflect.DeepEqual(got, args) {
			t.Errorf("SanitizeForgeArgs(%v) = %v", args, got)
		}
	}
}

func TestSanitizeForgeArgsPassesFreeTextValuesThrough(t *testing.T) {
	// Titles and bypass reasons are user text; they travel as argv
	// values and must not be mangled or rejected.
	title := `fix: handle "$(weird)" & <odd> titles; safely`
	got, err := SanitizeForgeArgs([]string{"pr", "create", "--title", title})
	if err != nil {
		t.Fatalf("SanitizeForgeArgs: %v", err)
	}
	if got[3] != title {
		t.Errorf("title mangled: %q", got[3])
	}
}

func TestSanitizeForgeArgsRejectsUnknownFlags(t *testing.T) {
	for _, args := range [][]string{
		{"pr", "create", "--web"},
		{"pr", "merge", "--disable-auto"},
		{"mr", "create", "--recover"},
		{"repos", "pr", "create", "--open"},
	} {
		if _, err := SanitizeForgeArgs(args); err == nil {
			t.Errorf("SanitizeForgeArgs(%v) accepted a non-whitelisted flag", args)
		}
	}
}

func TestSanitizeForgeArgsAllowsFlagEqualsValue(t *testing.T) {
	got, err := SanitizeForgeArgs([]string{"repos", "pr", "update", "--auto-complete=true"})
	if err != nil {
		t.Fatalf("SanitizeForgeArgs: %v", err)
	}
	if got[3] != "--auto-complete=true" {
		t.Errorf("got %v", got)
	}
}

func TestSanitizeURL(t *testing.T) {
	valid := []string{
		"git@github.com:org/repo.git",
		"https://gitlab.com/group/repo.git",
		"https://dev.azure.com/org/project/_git/repo",
		"ssh://git@github.example.com/org/repo.git",
	}
	for _, url := range valid {
		if err := SanitizeURL(url); err != nil {
			t.Errorf("SanitizeURL(%q): %v", url, err)
		}
	}

	invalid := []string{
		"",
		"ftp://example.com/repo.git",
		"git@github.com",             // SSH without path
		"https://host/$(id)/r.git",   // substitution
		"https://host/a.git; rm -rf", // separator
	}
	for _, url := range invalid {
		if err := SanitizeURL(url); err == nil {
			t.Errorf("SanitizeURL(%q) accepted invalid URL", url)
		}
	}
}

func TestSanitizeBranchName(t *testing.T) {
	valid := []string{"main", "chore/sync-config", "release-1.2", "feature/deep/nesting"}
	for _, name := range valid {
		if err := SanitizeBranchName(name); err != nil {
			t.Errorf("SanitizeBranchName(%q): %v", name, err)
		}
	}

	invalid := []string{"", ".hidden", "a..b", "has space", "bad~name", "ends.lock", "/leading", "trailing/", "a//b", strings.Repeat("x", 256)}
	for _, name := range invalid {
		if err := SanitizeBranchName(name); err == nil {
			t.Errorf("SanitizeBranchName(%q) accepted invalid name", name)
		}
	}
}

func TestSanitizeCommitMessage(t *testing.T) {
	if err := SanitizeCommitMessage("chore: sync 3 file(s) via xfg [config]"); err != nil {
		t.Errorf("valid message rejected: %v", err)
	}
	if err := SanitizeCommitMessage(""); err == nil {
		t.Errorf("empty message accepted")
	}
	if err := SanitizeCommitMessage("a\x00b"); err == nil {
		t.Errorf("null byte accepted")
	}
	if err := SanitizeCommitMessage(strings.Repeat("m", 10001)); err == nil {
		t.Errorf("oversized message accepted")
	}
}
