// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgedriver

import (
	"context"
	"fmt"

	gitlab "github.com/xanzy/go-gitlab"

	"github.com/archmagece/xfg/pkg/ratelimit"
	"github.com/archmagece/xfg/pkg/xfgconfig"
)

// gitLabDriver drives gitlab.com and self-hosted GitLab instances.
// MR lookup uses the API client; create/merge/close go through glab.
type gitLabDriver struct {
	cliDriver
	api     *gitlab.Client
	limiter *ratelimit.Limiter
}

func newGitLab(cfg Config) *gitLabDriver {
	token := tokenFromEnv("GITLAB_TOKEN")

	var api *gitlab.Client
	var err error
	if cfg.Info.Host != "gitlab.com" {
		api, err = gitlab.NewClient(token, gitlab.WithBaseURL(fmt.Sprintf("https://%s/api/v4", cfg.Info.Host)))
	} else {
		api, err = gitlab.NewClient(token)
	}
	if err != nil {
		api = nil
	}

	env := []string{"GITLAB_HOST=" + cfg.Info.Host}

	return &gitLabDriver{
		cliDriver: newCLIDriver(cfg, "glab", env),
		api:       api,
		limiter:   ratelimit.NewLimiter(600),
	}
}

// projectPath is the namespace-qualified project identifier used both as
// the API project ID and as glab's --repo value.
func (d *gitLabDriver) projectPath() string {
	if d.info.Namespace == "" {
		return d.info.Repo
	}
	return d.info.Namespace + "/" + d.info.Repo
}

func (d *gitLabDriver) ExistingPR(ctx context.Context, branch string) (*PullRequest, error) {
	if d.api == nil {
		return nil, nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	mrs, resp, err := d.api.MergeRequests.ListProjectMergeRequests(d.projectPath(), &gitlab.ListProjectMergeRequestsOptions{
		State:        gitlab.Ptr("opened"),
		SourceBranch: gitlab.Ptr(branch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyAPI("list merge requests", err)
	}
	if resp != nil {
		d.limiter.UpdateFromHeaders(resp.Response)
	}

	if len(mrs) == 0 {
		return nil, nil
	}
	return &PullRequest{URL: mrs[0].WebURL, Number: mrs[0].IID}, nil
}

// AutoMergeAllowed checks that the project accepts merge requests at
// all; GitLab's merge-when-pipeline-succeeds needs no repo-level opt-in.
func (d *gitLabDriver) AutoMergeAllowed(ctx context.Context) (bool, error) {
	if d.api == nil {
		return true, nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return false, err
	}

	project, _, err := d.api.Projects.GetProject(d.projectPath(), nil, gitlab.WithContext(ctx))
	if err != nil {
		return false, classifyAPI("get project", err)
	}
	return project.MergeRequestsEnabled, nil
}

func (d *gitLabDriver) CreatePR(ctx context.Context, branch, base, title, bodyPath string) (*PullRequest, error) {
	result, err := d.cli.Run(ctx, "",
		"mr", "create",
		"--repo", d.projectPath(),
		"--source-branch", branch,
		"--target-branch", base,
		"--title", title,
		"--description-file", bodyPath,
		"--yes",
	)
	if err != nil || result.ExitCode != 0 {
		return nil, classifyCLI("glab mr create", result)
	}

	url := lastLine(result.Stdout)
	d.logger.Info("created merge request %s", url)
	return &PullRequest{URL: url}, nil
}

func (d *gitLabDriver) ClosePR(ctx context.Context, dir string, pr *PullRequest, branch string) error {
	result, err := d.cli.Run(ctx, "",
		"mr", "close", branch,
		"--repo", d.projectPath(),
	)
	if err != nil || result.ExitCode != 0 {
		return classifyCLI("glab mr close", result)
	}
	return d.ws.DeleteRemoteBranch(ctx, dir, branch)
}

func (d *gitLabDriver) MergePR(ctx context.Context, pr *PullRequest, branch string, opts MergeOptions) error {
	args := []string{"mr", "merge", branch, "--repo", d.projectPath(), "--yes"}

	switch opts.Strategy {
	case xfgconfig.StrategySquash:
		args = append(args, "--squash")
	case xfgconfig.StrategyRebase:
		args = append(args, "--rebase")
	}

	if opts.Mode == xfgconfig.MergeAuto {
		args = append(args, "--auto-merge")
	}
	if opts.DeleteBranch {
		args = append(args, "--remove-source-branch")
	}

	result, err := d.cli.Run(ctx, "", args...)
	if err != nil || result.ExitCode != 0 {
		return classifyCLI("glab mr merge", result)
	}
	return nil
}
