// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgedriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/archmagece/xfg/pkg/ratelimit"
	"github.com/archmagece/xfg/pkg/xfgconfig"
)

// gitHubDriver drives github.com and GitHub Enterprise Server hosts.
// Read-only lookups (existing PR, auto-merge capability) use the REST
// API client; mutating calls go through gh.
type gitHubDriver struct {
	cliDriver
	api     *github.Client
	limiter *ratelimit.Limiter
}

func newGitHub(cfg Config) *gitHubDriver {
	token := tokenFromEnv("GH_TOKEN", "GITHUB_TOKEN")

	var httpClient *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		httpClient = github.NewClient(nil)
	}

	if cfg.Info.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Info.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Info.Host)
		if enterprise, err := httpClient.WithEnterpriseURLs(base, upload); err == nil {
			httpClient = enterprise
		}
	}

	env := []string{}
	if cfg.Info.Host != "github.com" {
		env = append(env, "GH_HOST="+cfg.Info.Host)
	}

	return &gitHubDriver{
		cliDriver: newCLIDriver(cfg, "gh", env),
		api:       httpClient,
		limiter:   ratelimit.NewLimiter(5000),
	}
}

func (d *gitHubDriver) repoSlug() string {
	return d.info.Owner + "/" + d.info.Repo
}

func (d *gitHubDriver) ExistingPR(ctx context.Context, branch string) (*PullRequest, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prs, resp, err := d.api.PullRequests.List(ctx, d.info.Owner, d.info.Repo, &github.PullRequestListOptions{
		State: "open",
		Head:  d.info.Owner + ":" + branch,
	})
	if err != nil {
		return nil, classifyAPI("list pull requests", err)
	}
	d.limiter.UpdateFromHeaders(resp.Response)

	if len(prs) == 0 {
		return nil, nil
	}
	return &PullRequest{URL: prs[0].GetHTMLURL(), Number: prs[0].GetNumber()}, nil
}

func (d *gitHubDriver) AutoMergeAllowed(ctx context.Context) (bool, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return false, err
	}

	repo, resp, err := d.api.Repositories.Get(ctx, d.info.Owner, d.info.Repo)
	if err != nil {
		return false, classifyAPI("get repository", err)
	}
	d.limiter.UpdateFromHeaders(resp.Response)

	return repo.GetAllowAutoMerge(), nil
}

func (d *gitHubDriver) CreatePR(ctx context.Context, branch, base, title, bodyPath string) (*PullRequest, error) {
	result, err := d.cli.Run(ctx, "",
		"pr", "create",
		"--repo", d.repoSlug(),
		"--head", branch,
		"--base", base,
		"--title", title,
		"--body-file", bodyPath,
	)
	if err != nil {
		return nil, classifyCLI("gh pr create", result)
	}
	if result.ExitCode != 0 {
		return nil, classifyCLI("gh pr create", result)
	}

	// gh prints the PR URL as the last stdout line.
	url := lastLine(result.Stdout)
	d.logger.Info("created pull request %s", url)
	return &PullRequest{URL: url}, nil
}

func (d *gitHubDriver) ClosePR(ctx context.Context, dir string, pr *PullRequest, branch string) error {
	result, err := d.cli.Run(ctx, "",
		"pr", "close", pr.URL,
		"--repo", d.repoSlug(),
		"--delete-branch",
	)
	if err != nil || result.ExitCode != 0 {
		return classifyCLI("gh pr close", result)
	}
	return nil
}

func (d *gitHubDriver) MergePR(ctx context.Context, pr *PullRequest, branch string, opts MergeOptions) error {
	args := []string{"pr", "merge", pr.URL, "--repo", d.repoSlug()}

	switch opts.Strategy {
	case xfgconfig.StrategyMerge:
		args = append(args, "--merge")
	case xfgconfig.StrategyRebase:
		args = append(args, "--rebase")
	default:
		args = append(args, "--squash")
	}

	switch opts.Mode {
	case xfgconfig.MergeAuto:
		args = append(args, "--auto")
	case xfgconfig.MergeForce:
		args = append(args, "--admin")
	}

	if opts.DeleteBranch {
		args = append(args, "--delete-branch")
	}

	result, err := d.cli.Run(ctx, "", args...)
	if err != nil || result.ExitCode != 0 {
		return classifyCLI("gh pr merge", result)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
