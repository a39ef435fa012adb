// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package reconciler

import "strings"

// maxBranchToken bounds the sanitized token length in bytes.
const maxBranchToken = 200

// SanitizeBranchToken turns an arbitrary identifier into a token safe
// for use inside a branch name: lowercased, everything outside
// [a-z0-9._-] replaced with '-', runs of '-' collapsed, leading and
// trailing '-' trimmed, truncated to 200 bytes.
func SanitizeBranchToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastDash := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		if !ok {
			r = '-'
		}
		if r == '-' {
			if lastDash {
				continue
			}
			lastDash = true
		} else {
			lastDash = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > maxBranchToken {
		out = strings.Trim(out[:maxBranchToken], "-")
	}
	return out
}
