// Package xerr defines the typed error kinds carried between the core
// components and the runner. Each kind is a concrete struct implementing
// error, Unwrap, and Is, following the same shape as internal/gitcmd.GitError
// so callers can use errors.Is/errors.As against sentinel values.
package xerr

import "fmt"

// ConfigKind enumerates the ways a spec can fail to load or normalize.
// A ConfigError always aborts the whole run before any repo is touched.
type ConfigKind string

const (
	MissingEnv                ConfigKind = "MissingEnv"
	RequiredEnv               ConfigKind = "RequiredEnv"
	PathEscape                ConfigKind = "PathEscape"
	SchemaViolation           ConfigKind = "SchemaViolation"
	ContentTypeMismatch       ConfigKind = "ContentTypeMismatch"
	UnknownArrayMergeStrategy ConfigKind = "UnknownArrayMergeStrategy"
)

// ConfigError reports a failure in loading or normalizing a spec.
type ConfigError struct {
	Kind    ConfigKind
	Name    string // variable, path, or field name, when applicable
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("config error (%s): %s: %s", e.Kind, e.Name, e.Message)
	}
	return fmt.Sprintf("config error (%s): %s", e.Kind, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// TemplateKind enumerates template-expansion failures. These fail only
// the affected repo.
type TemplateKind string

const (
	UnknownVariable TemplateKind = "UnknownVariable"
)

// TemplateError reports a failure expanding ${xfg:...} variables.
type TemplateError struct {
	Kind     TemplateKind
	Variable string
	Cause    error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error (%s): %s", e.Kind, e.Variable)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

func (e *TemplateError) Is(target error) bool {
	t, ok := target.(*TemplateError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// GitKind enumerates git-workspace failures.
type GitKind string

const (
	CloneFailed   GitKind = "CloneFailed"
	PushRejected  GitKind = "PushRejected"
	Cancelled     GitKind = "Cancelled"
	GitTransient  GitKind = "Transient"
)

// GitError reports a failure from the git workspace. Transient is retried
// by the reconciler's backoff loop; the others fail the repo outright.
type GitError struct {
	Kind    GitKind
	Command string
	Cause   error
}

func (e *GitError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("git error (%s): %s", e.Kind, e.Command)
	}
	return fmt.Sprintf("git error (%s)", e.Kind)
}

func (e *GitError) Unwrap() error { return e.Cause }

func (e *GitError) Is(target error) bool {
	t, ok := target.(*GitError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

func (e *GitError) Retryable() bool { return e.Kind == GitTransient }

// ForgeKind enumerates forge-driver failures.
type ForgeKind string

const (
	AuthFailed           ForgeKind = "AuthFailed"
	PermissionDenied     ForgeKind = "PermissionDenied"
	NotFound             ForgeKind = "NotFound"
	AutoMergeDisabled    ForgeKind = "AutoMergeDisabled"
	ForgeTransient       ForgeKind = "Transient"
	BypassReasonRequired ForgeKind = "BypassReasonRequired"
)

// ForgeError reports a failure from a ForgeDriver call. AutoMergeDisabled
// is not a failure: the reconciler downgrades the repo's merge mode to
// manual and continues.
type ForgeError struct {
	Kind    ForgeKind
	Op      string
	Cause   error
}

func (e *ForgeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("forge error (%s): %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("forge error (%s)", e.Kind)
}

func (e *ForgeError) Unwrap() error { return e.Cause }

func (e *ForgeError) Is(target error) bool {
	t, ok := target.(*ForgeError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

func (e *ForgeError) Retryable() bool { return e.Kind == ForgeTransient }

// ReconcileKind enumerates reconciler-level outcomes that are not failures.
type ReconcileKind string

const (
	NothingToDo ReconcileKind = "NothingToDo"
)

// ReconcileError signals a successful no-op outcome, recorded as skipped
// rather than failed.
type ReconcileError struct {
	Kind ReconcileKind
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile: %s", e.Kind)
}

func (e *ReconcileError) Is(target error) bool {
	t, ok := target.(*ReconcileError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}
