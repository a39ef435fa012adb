// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package forgedriver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/archmagece/xfg/internal/xerr"
	"github.com/archmagece/xfg/pkg/xfgconfig"
)

// azureDevOpsDriver drives dev.azure.com and *.visualstudio.com hosts
// entirely through the az CLI; Azure DevOps has no Go SDK in this
// tool's stack. Authentication is az's (AZURE_DEVOPS_EXT_PAT).
type azureDevOpsDriver struct {
	cliDriver
}

func newAzureDevOps(cfg Config) *azureDevOpsDriver {
	return &azureDevOpsDriver{cliDriver: newCLIDriver(cfg, "az", nil)}
}

// orgURL is the --organization value az expects.
func (d *azureDevOpsDriver) orgURL() string {
	if strings.HasSuffix(d.info.Host, ".visualstudio.com") {
		return "https://" + d.info.Host
	}
	return "https://dev.azure.com/" + d.info.Organization
}

func (d *azureDevOpsDriver) prURL(id int) string {
	return fmt.Sprintf("%s/%s/_git/%s/pullrequest/%d", d.orgURL(), d.info.Project, d.info.Repo, id)
}

func (d *azureDevOpsDriver) repoArgs() []string {
	return []string{
		"--organization", d.orgURL(),
		"--project", d.info.Project,
		"--repository", d.info.Repo,
	}
}

func (d *azureDevOpsDriver) ExistingPR(ctx context.Context, branch string) (*PullRequest, error) {
	args := append([]string{"repos", "pr", "list"}, d.repoArgs()...)
	args = append(args,
		"--source-branch", branch,
		"--status", "active",
		"--output", "json",
	)

	result, err := d.cli.Run(ctx, "", args...)
	if err != nil || result.ExitCode != 0 {
		return nil, classifyCLI("az repos pr list", result)
	}

	var prs []struct {
		PullRequestID int `json:"pullRequestId"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &prs); err != nil {
		return nil, &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: "az repos pr list", Cause: err}
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &PullRequest{URL: d.prURL(prs[0].PullRequestID), Number: prs[0].PullRequestID}, nil
}

// AutoMergeAllowed is always true: Azure DevOps exposes auto-complete on
// every pull request without a repository-level switch.
func (d *azureDevOpsDriver) AutoMergeAllowed(ctx context.Context) (bool, error) {
	return true, nil
}

func (d *azureDevOpsDriver) CreatePR(ctx context.Context, branch, base, title, bodyPath string) (*PullRequest, error) {
	// az reads an argument value from a file when it is given as
	// "@path", so the body stays in its temp file and off argv.
	args := append([]string{"repos", "pr", "create"}, d.repoArgs()...)
	args = append(args,
		"--source-branch", branch,
		"--target-branch", base,
		"--title", title,
		"--description", "@"+bodyPath,
		"--output", "json",
	)

	result, err := d.cli.Run(ctx, "", args...)
	if err != nil || result.ExitCode != 0 {
		return nil, classifyCLI("az repos pr create", result)
	}

	var pr struct {
		PullRequestID int `json:"pullRequestId"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &pr); err != nil {
		return nil, &xerr.ForgeError{Kind: xerr.ForgeTransient, Op: "az repos pr create", Cause: err}
	}

	created := &PullRequest{URL: d.prURL(pr.PullRequestID), Number: pr.PullRequestID}
	d.logger.Info("created pull request %s", created.URL)
	return created, nil
}

func (d *azureDevOpsDriver) ClosePR(ctx context.Context, dir string, pr *PullRequest, branch string) error {
	result, err := d.cli.Run(ctx, "",
		"repos", "pr", "update",
		"--organization", d.orgURL(),
		"--id", strconv.Itoa(pr.Number),
		"--status", "abandoned",
	)
	if err != nil || result.ExitCode != 0 {
		return classifyCLI("az repos pr update", result)
	}
	return d.ws.DeleteRemoteBranch(ctx, dir, branch)
}

func (d *azureDevOpsDriver) MergePR(ctx context.Context, pr *PullRequest, branch string, opts MergeOptions) error {
	args := []string{
		"repos", "pr", "update",
		"--organization", d.orgURL(),
		"--id", strconv.Itoa(pr.Number),
	}

	switch opts.Mode {
	case xfgconfig.MergeAuto:
		args = append(args, "--auto-complete", "true")
	case xfgconfig.MergeForce:
		// Normalization guarantees a bypass reason is present.
		args = append(args,
			"--status", "completed",
			"--bypass-policy", "true",
			"--bypass-policy-reason", opts.BypassReason,
		)
	default:
		args = append(args, "--status", "completed")
	}

	if opts.DeleteBranch {
		args = append(args, "--delete-source-branch", "true")
	}

	switch opts.Strategy {
	case xfgconfig.StrategySquash:
		args = append(args, "--squash", "true")
	}

	result, err := d.cli.Run(ctx, "", args...)
	if err != nil || result.ExitCode != 0 {
		return classifyCLI("az repos pr update", result)
	}
	return nil
}
