package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archmagece/xfg/internal/gitcmd"
	"github.com/archmagece/xfg/pkg/forge"
	"github.com/archmagece/xfg/pkg/forgedriver"
	"github.com/archmagece/xfg/pkg/gitworkspace"
	"github.com/archmagece/xfg/pkg/xfgconfig"
	"github.com/archmagece/xfg/pkg/xlog"
)

// fakeGit replays canned results for git invocations; everything not
// listed succeeds with empty output.
type fakeGit struct {
	results map[string]*gitcmd.Result
	calls   []string
}

func (f *fakeGit) Run(_ context.Context, _ string, args ...string) (*gitcmd.Result, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if r, ok := f.results[key]; ok {
		return r, nil
	}
	return &gitcmd.Result{ExitCode: 0}, nil
}

func (f *fakeGit) RunOutput(ctx context.Context, dir string, args ...string) (string, error) {
	r, _ := f.Run(ctx, dir, args...)
	if r.ExitCode != 0 {
		return "", &gitcmd.GitError{Command: strings.Join(args, " "), ExitCode: r.ExitCode, Stderr: r.Stderr}
	}
	return strings.TrimSpace(r.Stdout), nil
}

func (f *fakeGit) RunQuiet(ctx context.Context, dir string, args ...string) (bool, error) {
	r, _ := f.Run(ctx, dir, args...)
	return r.ExitCode == 0, nil
}

// fakeDriver materializes the "clone" by creating the directory and
// records the PR calls.
type fakeDriver struct {
	info     forge.Info
	ws       *gitworkspace.Workspace
	seed     func(dir string) error
	existing *forgedriver.PullRequest

	createdPR bool
	closedPR  bool
	mergedPR  bool
	autoMerge bool
}

func (d *fakeDriver) Info() forge.Info { return d.info }

func (d *fakeDriver) Clone(_ context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if d.seed != nil {
		return d.seed(dir)
	}
	return nil
}

func (d *fakeDriver) ExistingPR(context.Context, string) (*forgedriver.PullRequest, error) {
	return d.existing, nil
}

func (d *fakeDriver) ClosePR(context.Context, string, *forgedriver.PullRequest, string) error {
	d.closedPR = true
	return nil
}

func (d *fakeDriver) CreatePR(_ context.Context, _, _, _, bodyPath string) (*forgedriver.PullRequest, error) {
	d.createdPR = true
	if _, err := os.Stat(bodyPath); err != nil {
		return nil, err
	}
	return &forgedriver.PullRequest{URL: "https://example.com/pr/1", Number: 1}, nil
}

func (d *fakeDriver) MergePR(context.Context, *forgedriver.PullRequest, string, forgedriver.MergeOptions) error {
	d.mergedPR = true
	return nil
}

func (d *fakeDriver) AutoMergeAllowed(context.Context) (bool, error) { return d.autoMerge, nil }

func (d *fakeDriver) DirectPush(ctx context.Context, dir, branch string) error {
	return d.ws.Push(ctx, dir, branch, false)
}

func githubPlan(files ...*xfgconfig.PlannedFile) *xfgconfig.RepoPlan {
	return &xfgconfig.RepoPlan{
		GitURL: "git@github.com:acme/foo.git",
		Info: forge.Info{
			Platform: forge.GitHub,
			Host:     "github.com",
			Owner:    "acme",
			Repo:     "foo",
		},
		Files:     files,
		PROptions: xfgconfig.PROptions{}.Effective(),
	}
}

func newTestReconciler(t *testing.T, git *fakeGit, driver *fakeDriver, opts Options) *Reconciler {
	t.Helper()
	opts.WorkDir = t.TempDir()

	ws := gitworkspace.New(gitworkspace.WithRunner(git))
	driver.ws = ws

	rec, err := New(&xfgconfig.NormalizedSpec{ID: "config"}, opts, ws, xlog.Nop{}, "2026-08-01")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rec.WithDriverFactory(func(forgedriver.Config) (forgedriver.Driver, error) {
		return driver, nil
	})
}

func changedStatus() map[string]*gitcmd.Result {
	return map[string]*gitcmd.Result{
		"status --porcelain": {Stdout: "A  .prettierrc.json\n"},
	}
}

func TestReconcileCreatesPR(t *testing.T) {
	git := &fakeGit{results: changedStatus()}
	driver := &fakeDriver{autoMerge: true}
	rec := newTestReconciler(t, git, driver, Options{})

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:           ".prettierrc.json",
		Content:        map[string]any{"semi": false},
		DeleteOrphaned: true,
	}))

	if outcome.Status != StatusCreatedPR {
		t.Fatalf("status = %s (%v), want created-pr", outcome.Status, outcome.Err)
	}
	if outcome.URL == "" {
		t.Errorf("outcome has no PR URL")
	}
	if !driver.createdPR || !driver.mergedPR {
		t.Errorf("createdPR=%v mergedPR=%v", driver.createdPR, driver.mergedPR)
	}
}

func TestReconcileNoChange(t *testing.T) {
	git := &fakeGit{results: map[string]*gitcmd.Result{}}
	driver := &fakeDriver{}
	rec := newTestReconciler(t, git, driver, Options{})

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:    ".prettierrc.json",
		Content: map[string]any{"semi": false},
	}))

	if outcome.Status != StatusNoChange {
		t.Fatalf("status = %s (%v), want no-change", outcome.Status, outcome.Err)
	}
	if driver.createdPR {
		t.Errorf("no-change run still opened a PR")
	}
}

func TestReconcileDowngradesWhenAutoMergeDisabled(t *testing.T) {
	git := &fakeGit{results: changedStatus()}
	driver := &fakeDriver{autoMerge: false}
	rec := newTestReconciler(t, git, driver, Options{})

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:    ".prettierrc.json",
		Content: map[string]any{"semi": false},
	}))

	if outcome.Status != StatusCreatedPR {
		t.Fatalf("status = %s (%v), want created-pr", outcome.Status, outcome.Err)
	}
	if driver.mergedPR {
		t.Errorf("merge was attempted although auto-merge is disabled")
	}
}

func TestReconcileFreshStartClosesExistingPR(t *testing.T) {
	git := &fakeGit{results: changedStatus()}
	driver := &fakeDriver{
		existing:  &forgedriver.PullRequest{URL: "https://example.com/pr/7", Number: 7},
		autoMerge: true,
	}
	rec := newTestReconciler(t, git, driver, Options{})

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:    ".prettierrc.json",
		Content: map[string]any{"semi": false},
	}))

	if outcome.Status != StatusUpdatedPR {
		t.Fatalf("status = %s (%v), want updated-pr", outcome.Status, outcome.Err)
	}
	if !driver.closedPR || !driver.createdPR {
		t.Errorf("closedPR=%v createdPR=%v, want fresh-start close then create", driver.closedPR, driver.createdPR)
	}
}

func TestReconcileDirectPushRejected(t *testing.T) {
	git := &fakeGit{results: map[string]*gitcmd.Result{
		"status --porcelain": {Stdout: "A  .prettierrc.json\n"},
		"push origin main": {
			ExitCode: 1,
			Stderr:   "remote: error: protected branch hook declined",
		},
	}}
	driver := &fakeDriver{}
	rec := newTestReconciler(t, git, driver, Options{
		PROverrides: xfgconfig.PROptions{Merge: xfgconfig.MergeDirect},
	})

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:    ".prettierrc.json",
		Content: map[string]any{"semi": false},
	}))

	if outcome.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", outcome.Status)
	}
	if outcome.Err == nil || !strings.Contains(outcome.Err.Error(), "merge: force") {
		t.Errorf("error should recommend merge: force, got %v", outcome.Err)
	}
}

func TestReconcileWritesFilesAndManifest(t *testing.T) {
	git := &fakeGit{results: changedStatus()}
	driver := &fakeDriver{autoMerge: true}
	opts := Options{}
	rec := newTestReconciler(t, git, driver, opts)

	plan := githubPlan(&xfgconfig.PlannedFile{
		Path:           "configs/app.json",
		Content:        map[string]any{"debug": true},
		DeleteOrphaned: true,
	})

	// Seed the "clone" with a previously tracked file that the plan no
	// longer declares.
	driver.seed = func(dir string) error {
		if err := os.WriteFile(filepath.Join(dir, "stale.json"), []byte("{}\n"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, ".xfg.json"),
			[]byte(`{"version":2,"configs":{"config":["configs/app.json","stale.json"]}}`), 0o644)
	}

	outcome := rec.Reconcile(context.Background(), plan)
	if outcome.Status != StatusCreatedPR {
		t.Fatalf("status = %s (%v)", outcome.Status, outcome.Err)
	}

	dir := filepath.Join(rec.opts.WorkDir, "acme-foo")
	if _, err := os.Stat(filepath.Join(dir, "configs", "app.json")); err != nil {
		t.Errorf("planned file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "stale.json")); !os.IsNotExist(err) {
		t.Errorf("orphan was not deleted")
	}
	data, err := os.ReadFile(filepath.Join(dir, ".xfg.json"))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	if strings.Contains(string(data), "stale.json") {
		t.Errorf("manifest still tracks orphan:\n%s", data)
	}
}

func TestReconcileNoDeleteKeepsOrphanButRewritesManifest(t *testing.T) {
	git := &fakeGit{results: changedStatus()}
	driver := &fakeDriver{autoMerge: true}
	rec := newTestReconciler(t, git, driver, Options{NoDelete: true})

	driver.seed = func(dir string) error {
		if err := os.WriteFile(filepath.Join(dir, "stale.json"), []byte("{}\n"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, ".xfg.json"),
			[]byte(`{"version":2,"configs":{"config":["stale.json"]}}`), 0o644)
	}

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:           "configs/app.json",
		Content:        map[string]any{"debug": true},
		DeleteOrphaned: true,
	}))
	if outcome.Status != StatusCreatedPR {
		t.Fatalf("status = %s (%v)", outcome.Status, outcome.Err)
	}

	dir := filepath.Join(rec.opts.WorkDir, "acme-foo")
	if _, err := os.Stat(filepath.Join(dir, "stale.json")); err != nil {
		t.Errorf("--no-delete should keep the orphan: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ".xfg.json"))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	if strings.Contains(string(data), "stale.json") {
		t.Errorf("manifest should no longer track the kept orphan:\n%s", data)
	}
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	git := &fakeGit{results: map[string]*gitcmd.Result{}}
	driver := &fakeDriver{}
	rec := newTestReconciler(t, git, driver, Options{DryRun: true})

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:    ".prettierrc.json",
		Content: map[string]any{"semi": false},
	}))

	if outcome.Status != StatusCreatedPR {
		t.Fatalf("status = %s (%v), want created-pr prediction", outcome.Status, outcome.Err)
	}
	if driver.createdPR {
		t.Errorf("dry-run called CreatePR")
	}
	dir := filepath.Join(rec.opts.WorkDir, "acme-foo")
	if _, err := os.Stat(filepath.Join(dir, ".prettierrc.json")); !os.IsNotExist(err) {
		t.Errorf("dry-run wrote a file")
	}
}

func TestReconcileCreateOnlySkipsExistingFile(t *testing.T) {
	git := &fakeGit{results: map[string]*gitcmd.Result{}}
	driver := &fakeDriver{}
	rec := newTestReconciler(t, git, driver, Options{})

	seeded := []byte("keep me\n")
	driver.seed = func(dir string) error {
		return os.WriteFile(filepath.Join(dir, "CODEOWNERS"), seeded, 0o644)
	}

	outcome := rec.Reconcile(context.Background(), githubPlan(&xfgconfig.PlannedFile{
		Path:       "CODEOWNERS",
		Content:    "generated\n",
		CreateOnly: true,
	}))

	if outcome.Status != StatusNoChange {
		t.Fatalf("status = %s (%v), want no-change", outcome.Status, outcome.Err)
	}
	dir := filepath.Join(rec.opts.WorkDir, "acme-foo")
	data, err := os.ReadFile(filepath.Join(dir, "CODEOWNERS"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(seeded) {
		t.Errorf("createOnly overwrote existing file: %q", data)
	}
}
