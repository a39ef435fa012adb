// Package cmd implements the CLI surface for xfg.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/archmagece/xfg/pkg/cliutil"
	"github.com/archmagece/xfg/pkg/xfgconfig"
)

var (
	// Global flags
	configPath string
	verbose    bool

	dryRun        bool
	workDir       string
	retries       int
	branchName    string
	mergeMode     string
	mergeStrategy string
	deleteBranch  string
	noDelete      bool
	outputFormat  string
)

// errUsage marks errors that should exit with code 2.
var errUsage = errors.New("usage error")

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "xfg",
	Short: "Sync configuration files across many Git repositories",
	Long: `xfg applies one declarative YAML spec to a fleet of repositories,
opening a pull/merge request (or pushing directly) on each until its
working tree matches the spec.
` + cliutil.QuickStartHelp(`  # Sync every repo named in the spec
  xfg --config sync.yaml

  # See what would change without touching anything
  xfg --config sync.yaml --dry-run`),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to the sync spec (required)")
	flags.BoolVar(&dryRun, "dry-run", false, "report what would change without writing, committing, or pushing")
	flags.StringVar(&workDir, "work-dir", "", "root directory for per-repo workspaces")
	flags.IntVar(&retries, "retries", 3, "attempts for transient git/forge errors")
	flags.StringVar(&branchName, "branch", "", "override the sync branch name")
	flags.StringVar(&mergeMode, "merge", "", "merge mode: manual, auto, force, or direct")
	flags.StringVar(&mergeStrategy, "merge-strategy", "", "merge strategy: merge, squash, or rebase")
	flags.StringVar(&deleteBranch, "delete-branch", "", "delete the sync branch after merge: true or false")
	flags.BoolVar(&noDelete, "no-delete", false, "keep orphaned files; the manifest is still updated")
	flags.StringVar(&outputFormat, "format", "default", "summary format: default or json")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	rootCmd.AddCommand(versionCmd)
}

// flagOverrides turns the merge-related flags into a PROptions overlay,
// validating enum values up front so a typo is a usage error.
func flagOverrides() (xfgconfig.PROptions, error) {
	var overrides xfgconfig.PROptions

	switch xfgconfig.MergeMode(mergeMode) {
	case "", xfgconfig.MergeManual, xfgconfig.MergeAuto, xfgconfig.MergeForce, xfgconfig.MergeDirect:
		overrides.Merge = xfgconfig.MergeMode(mergeMode)
	default:
		return overrides, fmt.Errorf("%w: invalid --merge value %q", errUsage, mergeMode)
	}

	switch xfgconfig.PRStrategy(mergeStrategy) {
	case "", xfgconfig.StrategyMerge, xfgconfig.StrategySquash, xfgconfig.StrategyRebase:
		overrides.MergeStrategy = xfgconfig.PRStrategy(mergeStrategy)
	default:
		return overrides, fmt.Errorf("%w: invalid --merge-strategy value %q", errUsage, mergeStrategy)
	}

	switch deleteBranch {
	case "":
	case "true":
		t := true
		overrides.DeleteBranch = &t
	case "false":
		f := false
		overrides.DeleteBranch = &f
	default:
		return overrides, fmt.Errorf("%w: invalid --delete-branch value %q", errUsage, deleteBranch)
	}

	return overrides, nil
}

func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), "xfg")
}

// Execute runs the root command and maps errors to exit codes: 0 for
// success, 1 for config or repo failures, 2 for usage errors.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "xfg:", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	return 0
}
