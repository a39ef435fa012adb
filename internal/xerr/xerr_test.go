package xerr

import (
	"errors"
	"testing"
)

func TestConfigErrorIs(t *testing.T) {
	err := &ConfigError{Kind: MissingEnv, Name: "HOME", Message: "not set"}

	if !errors.Is(err, &ConfigError{Kind: MissingEnv}) {
		t.Fatalf("expected errors.Is to match on Kind")
	}
	if errors.Is(err, &ConfigError{Kind: PathEscape}) {
		t.Fatalf("expected errors.Is to reject mismatched Kind")
	}
}

func TestGitErrorRetryable(t *testing.T) {
	tests := []struct {
		kind GitKind
		want bool
	}{
		{GitTransient, true},
		{PushRejected, false},
		{CloneFailed, false},
	}
	for _, tt := range tests {
		e := &GitError{Kind: tt.kind}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("GitError{Kind: %s}.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestForgeErrorRetryable(t *testing.T) {
	if !(&ForgeError{Kind: ForgeTransient}).Retryable() {
		t.Fatalf("expected ForgeTransient to be retryable")
	}
	if (&ForgeError{Kind: AuthFailed}).Retryable() {
		t.Fatalf("expected AuthFailed to not be retryable")
	}
}

func TestReconcileErrorIs(t *testing.T) {
	err := &ReconcileError{Kind: NothingToDo}
	if !errors.Is(err, &ReconcileError{Kind: NothingToDo}) {
		t.Fatalf("expected errors.Is to match NothingToDo")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ConfigError{Kind: SchemaViolation, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected unwrap to expose cause")
	}
}
