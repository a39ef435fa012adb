package reconciler

import (
	"strings"
	"testing"
)

func TestSanitizeBranchToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MyConfig", "myconfig"},
		{"team config/v2", "team-config-v2"},
		{"a//b__c..d", "a-b__c..d"},
		{"--weird--", "weird"},
		{"Hello, World!", "hello-world"},
		{"dots.and_underscores-ok", "dots.and_underscores-ok"},
	}
	for _, tt := range tests {
		if got := SanitizeBranchToken(tt.in); got != tt.want {
			t.Errorf("SanitizeBranchToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeBranchTokenTruncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SanitizeBranchToken(long)
	if len(got) != 200 {
		t.Errorf("len = %d, want 200", len(got))
	}
}
