package gitcmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// passthrough skips validation, for tests that drive plain binaries
// (echo, sh) with arguments the git whitelist would reject.
func passthrough(args []string) ([]string, error) { return args, nil }

func TestRunRejectsUnsanitizedArgsBeforeExec(t *testing.T) {
	executor := NewExecutor()

	result, err := executor.Run(context.Background(), "", "status", "; rm -rf /")
	if err == nil {
		t.Fatalf("expected sanitization error")
	}
	if result.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 (command never ran)", result.ExitCode)
	}
}

func TestDefaultValidatorIsGitWhitelist(t *testing.T) {
	executor := NewExecutor(WithGitBinary("echo"))

	// --title is a forge CLI flag; the default git whitelist must
	// reject it even though the binary is harmless.
	if _, err := executor.Run(context.Background(), "", "pr", "create", "--title", "x"); err == nil {
		t.Errorf("git validator accepted a forge-only flag")
	}
}

func TestWithArgValidatorSwapsInForgeWhitelist(t *testing.T) {
	executor := NewExecutor(
		WithGitBinary("echo"),
		WithArgValidator(SanitizeForgeArgs),
	)

	title := "feat: tricky; $(title) & more"
	result, err := executor.Run(context.Background(), "", "pr", "create", "--title", title)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, stderr %q", result.ExitCode, result.Stderr)
	}
	if !strings.Contains(result.Stdout, title) {
		t.Errorf("free-text argv value mangled: %q", result.Stdout)
	}
}

func TestRunOutputTrimsAndReportsFailure(t *testing.T) {
	executor := NewExecutor(WithGitBinary("echo"), WithArgValidator(passthrough))

	out, err := executor.RunOutput(context.Background(), "", "hello", "world")
	if err != nil {
		t.Fatalf("RunOutput: %v", err)
	}
	if out != "hello world" {
		t.Errorf("out = %q", out)
	}

	failing := NewExecutor(WithGitBinary("false"), WithArgValidator(passthrough))
	_, err = failing.RunOutput(context.Background(), "")
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("error = %v, want GitError", err)
	}
	if gitErr.ExitCode == 0 {
		t.Errorf("ExitCode = 0 in failure GitError")
	}
}

func TestRunQuiet(t *testing.T) {
	executor := NewExecutor(WithGitBinary("true"), WithArgValidator(passthrough))
	ok, err := executor.RunQuiet(context.Background(), "")
	if err != nil || !ok {
		t.Errorf("RunQuiet(true) = %v, %v", ok, err)
	}

	executor = NewExecutor(WithGitBinary("false"), WithArgValidator(passthrough))
	ok, err = executor.RunQuiet(context.Background(), "")
	if err != nil || ok {
		t.Errorf("RunQuiet(false) = %v, %v", ok, err)
	}
}

func TestWithEnvAppendsToInheritedEnvironment(t *testing.T) {
	executor := NewExecutor(
		WithGitBinary("sh"),
		WithArgValidator(passthrough),
		WithEnv([]string{"XFG_TEST_ENV=from-executor"}),
	)

	// The binary resolves via PATH and the variable via the appended
	// entry, so both the inherited and the extra environment must be
	// present.
	result, err := executor.Run(context.Background(), "", "-c", "echo $XFG_TEST_ENV")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "from-executor" {
		t.Errorf("stdout = %q, want appended env value", result.Stdout)
	}
}

func TestTimeoutKillsCommand(t *testing.T) {
	executor := NewExecutor(
		WithGitBinary("sleep"),
		WithArgValidator(passthrough),
		WithTimeout(50*time.Millisecond),
	)

	result, err := executor.Run(context.Background(), "", "5")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode == 0 {
		t.Errorf("ExitCode = 0, want non-zero for timed-out command")
	}
	if result.Error == nil {
		t.Errorf("Error = nil, want the kill error")
	}
}
