package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/archmagece/xfg/pkg/cliutil"
	"github.com/archmagece/xfg/pkg/gitworkspace"
	"github.com/archmagece/xfg/pkg/reconciler"
	"github.com/archmagece/xfg/pkg/runner"
	"github.com/archmagece/xfg/pkg/xfgconfig"
	"github.com/archmagece/xfg/pkg/xlog"
)

func runSync(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return fmt.Errorf("%w: --config is required", errUsage)
	}

	overrides, err := flagOverrides()
	if err != nil {
		return err
	}

	logger := xlog.NewStdLogger(verbose)

	spec, err := xfgconfig.Load(configPath, xfgconfig.LoadOptions{})
	if err != nil {
		return err
	}

	dir := workDir
	if dir == "" {
		dir = defaultWorkDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	opts := reconciler.Options{
		WorkDir:     dir,
		DryRun:      dryRun,
		Retries:     retries,
		Branch:      branchName,
		NoDelete:    noDelete,
		PROverrides: overrides,
	}

	ws := gitworkspace.New(gitworkspace.WithLogger(logger))
	date := time.Now().UTC().Format("2006-01-02")

	rec, err := reconciler.New(spec, opts, ws, logger, date)
	if err != nil {
		return err
	}

	result := runner.Run(cmd.Context(), spec, rec, logger)

	switch outputFormat {
	case "json":
		out, err := summaryJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "default", "":
		fmt.Print(summaryTable(result))
	default:
		return fmt.Errorf("%w: invalid --format value %q", errUsage, outputFormat)
	}

	if result.Failed() {
		return fmt.Errorf("%d of %d repo(s) failed", result.Counts()[reconciler.StatusFailed], len(result.Outcomes))
	}
	return nil
}

// summaryJSON renders the summary as a JSON array for machine callers.
func summaryJSON(result runner.Result) (string, error) {
	type line struct {
		Repo   string `json:"repo"`
		Status string `json:"status"`
		URL    string `json:"url,omitempty"`
		Error  string `json:"error,omitempty"`
	}
	lines := make([]line, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		l := line{Repo: o.Repo, Status: string(o.Status), URL: o.URL}
		if o.Err != nil {
			l.Error = o.Err.Error()
		}
		lines = append(lines, l)
	}
	out, err := json.MarshalIndent(lines, "", "  ")
	return string(out), err
}

// summaryTable renders the one-line-per-repo summary written to stdout.
func summaryTable(result runner.Result) string {
	rows := make([][]string, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		detail := o.URL
		if o.Err != nil {
			detail = o.Err.Error()
		}
		rows = append(rows, []string{o.Repo, string(o.Status), detail})
	}
	return cliutil.Table([]string{"REPO", "STATUS", "DETAIL"}, rows)
}
