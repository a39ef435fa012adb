// Package forge classifies a repository's git remote URL into a concrete
// hosting platform and extracts the identity fields each platform's
// ForgeDriver needs (owner, organization/project, or nested namespace).
package forge

import (
	"fmt"
	"regexp"
	"strings"
)

// Platform identifies a concrete forge.
type Platform string

const (
	GitHub      Platform = "github"
	AzureDevOps Platform = "azure-devops"
	GitLab      Platform = "gitlab"
)

// Info is the RepoInfo produced by Detect: the platform-tagged identity of
// a single repository, as parsed from its git remote URL.
type Info struct {
	Platform     Platform
	Host         string
	Owner        string // GitHub, GitLab-flat
	Repo         string // populated for every platform
	Organization string // Azure DevOps
	Project      string // Azure DevOps
	Namespace    string // GitLab, slash-joined path excluding the final repo segment
}

// FullName returns the platform-specific canonical name used by
// ${xfg:repo.fullName}.
func (i Info) FullName() string {
	switch i.Platform {
	case AzureDevOps:
		return fmt.Sprintf("%s/%s/%s", i.Organization, i.Project, i.Repo)
	case GitLab:
		if i.Namespace != "" {
			return fmt.Sprintf("%s/%s", i.Namespace, i.Repo)
		}
		return i.Repo
	default: // GitHub
		return fmt.Sprintf("%s/%s", i.Owner, i.Repo)
	}
}

var (
	sshURL   = regexp.MustCompile(`^[\w.-]+@([\w.-]+):(.+?)(?:\.git)?/?$`)
	httpsURL = regexp.MustCompile(`^https?://([\w.-]+)(?::\d+)?/(.+?)(?:\.git)?/?$`)
)

// Detect parses a git remote URL into an Info. githubHosts extends the
// set of hostnames classified as GitHub (for GitHub Enterprise Server
// instances under a custom domain).
func Detect(gitURL string, githubHosts []string) (Info, error) {
	host, path, err := splitURL(gitURL)
	if err != nil {
		return Info{}, err
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = strings.TrimSuffix(s, ".git")
	}

	switch {
	case isGitHubHost(host, githubHosts):
		if len(segments) < 2 {
			return Info{}, fmt.Errorf("forge: github URL missing owner/repo: %s", gitURL)
		}
		owner := segments[len(segments)-2]
		repo := segments[len(segments)-1]
		return Info{Platform: GitHub, Host: host, Owner: owner, Repo: repo}, nil

	case strings.Contains(host, "dev.azure.com") || strings.HasSuffix(host, ".visualstudio.com"):
		if len(segments) < 3 {
			return Info{}, fmt.Errorf("forge: azure devops URL missing org/project/repo: %s", gitURL)
		}
		n := len(segments)
		org, project, repo := segments[n-3], segments[n-2], segments[n-1]
		// Canonical form is /org/project/_git/repo; prefer it when present.
		if idx := indexOf(segments, "_git"); idx >= 1 {
			org = segments[0]
			project = segments[idx-1]
			repo = segments[len(segments)-1]
		}
		return Info{Platform: AzureDevOps, Host: host, Organization: org, Project: project, Repo: repo}, nil

	case strings.Contains(host, "gitlab"):
		if len(segments) < 2 {
			return Info{}, fmt.Errorf("forge: gitlab URL missing namespace/repo: %s", gitURL)
		}
		repo := segments[len(segments)-1]
		namespace := strings.Join(segments[:len(segments)-1], "/")
		info := Info{Platform: GitLab, Host: host, Namespace: namespace, Repo: repo}
		if len(segments) == 2 {
			info.Owner = segments[0]
		}
		return info, nil

	default:
		return Info{}, fmt.Errorf("forge: unrecognized host %q in %s", host, gitURL)
	}
}

func indexOf(segs []string, target string) int {
	for i, s := range segs {
		if s == target {
			return i
		}
	}
	return -1
}

func isGitHubHost(host string, extra []string) bool {
	if host == "github.com" {
		return true
	}
	for _, h := range extra {
		if h == host {
			return true
		}
	}
	return false
}

func splitURL(gitURL string) (host, path string, err error) {
	if m := sshURL.FindStringSubmatch(gitURL); m != nil {
		return m[1], m[2], nil
	}
	if m := httpsURL.FindStringSubmatch(gitURL); m != nil {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("forge: unrecognized git URL format: %s", gitURL)
}
