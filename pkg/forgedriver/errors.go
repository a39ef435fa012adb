// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgedriver

import (
	"fmt"
	"strings"

	"github.com/archmagece/xfg/internal/gitcmd"
	"github.com/archmagece/xfg/internal/xerr"
)

// classifyCLI maps a failed forge CLI invocation to a typed ForgeError
// so the reconciler can decide between retry, downgrade, and failure.
func classifyCLI(op string, result *gitcmd.Result) error {
	if result == nil {
		return &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: op}
	}

	out := strings.ToLower(result.Stderr + "\n" + result.Stdout)
	cause := fmt.Errorf("%s: exit %d: %s", op, result.ExitCode, strings.TrimSpace(result.Stderr))

	switch {
	case containsAny(out,
		"auto-merge is not allowed",
		"auto merge is not enabled",
		"enableautomerge",
		"protected branch rules not configured",
		"auto-merge disabled"):
		return &xerr.ForgeError{Kind: xerr.AutoMergeDisabled, Op: op, Cause: cause}

	case containsAny(out,
		"authentication failed",
		"must authenticate",
		"gh auth login",
		"glab auth login",
		"az login",
		"credentials",
		"401",
		"bad credentials",
		"token is expired"):
		return &xerr.ForgeError{Kind: xerr.AuthFailed, Op: op, Cause: cause}

	case containsAny(out,
		"permission denied",
		"forbidden",
		"403",
		"insufficient privileges",
		"not authorized"):
		return &xerr.ForgeError{Kind: xerr.PermissionDenied, Op: op, Cause: cause}

	case containsAny(out,
		"not found",
		"could not resolve",
		"404",
		"does not exist"):
		return &xerr.ForgeError{Kind: xerr.NotFound, Op: op, Cause: cause}

	case containsAny(out,
		"timeout",
		"timed out",
		"connection reset",
		"temporarily unavailable",
		"rate limit",
		"429",
		"502",
		"503",
		"504"):
		return &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: op, Cause: cause}

	default:
		return &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: op, Cause: cause}
	}
}

func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// classifyAPI maps Go API client errors (go-github, go-gitlab) onto the
// same kinds as the CLI path.
func classifyAPI(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "bad credentials", "unauthorized"):
		return &xerr.ForgeError{Kind: xerr.AuthFailed, Op: op, Cause: err}
	case containsAny(msg, "403", "forbidden", "rate limit"):
		if containsAny(msg, "rate limit") {
			return &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: op, Cause: err}
		}
		return &xerr.ForgeError{Kind: xerr.PermissionDenied, Op: op, Cause: err}
	case containsAny(msg, "404", "not found"):
		return &xerr.ForgeError{Kind: xerr.NotFound, Op: op, Cause: err}
	case containsAny(msg, "timeout", "timed out", "connection reset", "502", "503", "504"):
		return &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: op, Cause: err}
	default:
		return &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: op, Cause: err}
	}
}
