package forge

import "testing"

func TestDetectGitHubSSH(t *testing.T) {
	info, err := Detect("git@github.com:org/a.git", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Platform != GitHub || info.Owner != "org" || info.Repo != "a" {
		t.Errorf("got %+v", info)
	}
	if info.FullName() != "org/a" {
		t.Errorf("FullName() = %q, want org/a", info.FullName())
	}
}

func TestDetectGitHubEnterpriseHost(t *testing.T) {
	info, err := Detect("git@github.internal.example.com:team/svc.git", []string{"github.internal.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Platform != GitHub {
		t.Errorf("expected GitHub classification for custom host, got %v", info.Platform)
	}
}

func TestDetectGitLabNested(t *testing.T) {
	info, err := Detect("git@gitlab.com:group/subgroup/project.git", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Platform != GitLab || info.Namespace != "group/subgroup" || info.Repo != "project" {
		t.Errorf("got %+v", info)
	}
	if want := "group/subgroup/project"; info.FullName() != want {
		t.Errorf("FullName() = %q, want %q", info.FullName(), want)
	}
}

func TestDetectAzureDevOps(t *testing.T) {
	info, err := Detect("https://dev.azure.com/myorg/myproject/_git/myrepo", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Platform != AzureDevOps || info.Organization != "myorg" || info.Project != "myproject" || info.Repo != "myrepo" {
		t.Errorf("got %+v", info)
	}
	if want := "myorg/myproject/myrepo"; info.FullName() != want {
		t.Errorf("FullName() = %q, want %q", info.FullName(), want)
	}
}

func TestDetectUnrecognized(t *testing.T) {
	if _, err := Detect("not-a-url", nil); err == nil {
		t.Fatalf("expected error for unrecognized URL")
	}
}
