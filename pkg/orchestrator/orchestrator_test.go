package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/result"
	"github.com/windowsadmins/winmaint/pkg/scripts"
	"github.com/windowsadmins/winmaint/pkg/tasks"
)

type fakeTask struct {
	number int
	name   string
	audit  bool
	run    func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error)
	calls  int
}

func (f *fakeTask) Number() int         { return f.number }
func (f *fakeTask) Name() string        { return f.name }
func (f *fakeTask) Description() string { return f.name }
func (f *fakeTask) Audit() bool         { return f.audit }

func (f *fakeTask) Run(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
	f.calls++
	if f.run == nil {
		return tasks.Outcome{}, nil
	}
	return f.run(ctx, rc)
}

type fakeHooks struct {
	errs map[string]error
	ran  []string
}

func (f *fakeHooks) Run(ctx context.Context, name string) error {
	f.ran = append(f.ran, name)
	if err, ok := f.errs[name]; ok {
		return err
	}
	return scripts.ErrNotFound
}

func setup(t *testing.T) *config.Configuration {
	t.Helper()
	base := t.TempDir()
	cfg := config.GetDefaultConfig(base)
	require.NoError(t, cfg.EnsureDirs())
	require.NoError(t, logging.InitWithConfig(logging.LoggerConfig{
		BaseDir: cfg.LogsPath, RunType: "test", Level: logging.LevelDebug,
	}))
	t.Cleanup(logging.CloseLogger)
	require.NoError(t, logging.StartSession(nil))
	return cfg
}

func counts(detected, processed, failed int) tasks.Outcome {
	return tasks.Outcome{Counts: result.Counts{Detected: detected, Processed: processed, Failed: failed}}
}

func newOrchestrator(cfg *config.Configuration, hooks Hooks, ts ...tasks.Task) *Orchestrator {
	o := New(cfg, &config.Lists{}, tasks.RunContext{}, hooks)
	o.Tasks = ts
	return o
}

func TestRunOneResultPerTask(t *testing.T) {
	cfg := setup(t)
	cfg.Modules["Disabled"] = false

	ok := &fakeTask{number: 1, name: "Audit", audit: true, run: func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
		assert.NotEmpty(t, rc.InventoryDir)
		assert.DirExists(t, rc.InventoryDir)
		return counts(5, 0, 0), nil
	}}
	failing := &fakeTask{number: 2, name: "Failing", run: func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
		return counts(3, 2, 1), nil
	}}
	erroring := &fakeTask{number: 3, name: "Erroring", run: func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
		return tasks.Outcome{}, errors.New("scan failed")
	}}
	panicking := &fakeTask{number: 4, name: "Panicking", run: func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
		panic("boom")
	}}
	disabled := &fakeTask{number: 5, name: "Disabled"}

	o := newOrchestrator(cfg, nil, ok, failing, erroring, panicking, disabled)
	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 5)

	byName := map[string]result.ModuleResult{}
	for _, r := range report.Results {
		byName[r.Module] = r
	}
	assert.Equal(t, result.StatusCompleted, byName["Audit"].Status)
	assert.True(t, byName["Audit"].Success)
	assert.Equal(t, 5, byName["Audit"].Detected)

	assert.Equal(t, result.StatusFailed, byName["Failing"].Status)
	assert.False(t, byName["Failing"].Success)
	assert.Equal(t, 1, byName["Failing"].Failed)

	assert.Equal(t, result.StatusFailed, byName["Erroring"].Status)
	assert.Equal(t, "scan failed", byName["Erroring"].Error)

	assert.Equal(t, result.StatusFailed, byName["Panicking"].Status)
	assert.Contains(t, byName["Panicking"].Error, "boom")

	assert.Equal(t, result.StatusDisabled, byName["Disabled"].Status)
	assert.Zero(t, disabled.calls)

	assert.True(t, report.Failed())
	assert.Equal(t, result.StatusFailed, report.Status())
	assert.False(t, report.FinishedAt.IsZero())

	session, err := logging.ReadSession(filepath.Join(logging.GetCurrentLogDir(), logging.SessionFile))
	require.NoError(t, err)
	assert.Equal(t, result.StatusFailed, session.Status)
	assert.Equal(t, 5, session.Summary.TotalModules)
	assert.Equal(t, 1, session.Summary.Succeeded)
	assert.Equal(t, 3, session.Summary.Failed)
	assert.Equal(t, 1, session.Summary.Skipped)
	assert.Equal(t, 8, session.Summary.ItemsDetected)
}

func TestRunSelection(t *testing.T) {
	cfg := setup(t)
	a := &fakeTask{number: 1, name: "A"}
	b := &fakeTask{number: 2, name: "B"}
	c := &fakeTask{number: 3, name: "C"}
	o := newOrchestrator(cfg, nil, a, b, c)

	report, err := o.Run(context.Background(), []int{1, 3})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "A", report.Results[0].Module)
	assert.Equal(t, "C", report.Results[1].Module)
	assert.Zero(t, b.calls)

	_, err = o.Run(context.Background(), []int{9})
	assert.Error(t, err)
}

func TestRunCancelledSkipsRemaining(t *testing.T) {
	cfg := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeTask{number: 1, name: "First", run: func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
		cancel()
		return counts(1, 1, 0), nil
	}}
	second := &fakeTask{number: 2, name: "Second"}
	third := &fakeTask{number: 3, name: "Third"}
	hooks := &fakeHooks{}

	report, err := newOrchestrator(cfg, hooks, first, second, third).Run(ctx, nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, result.StatusCompleted, report.Results[0].Status)
	assert.Equal(t, result.StatusSkipped, report.Results[1].Status)
	assert.Equal(t, result.StatusSkipped, report.Results[2].Status)
	assert.Zero(t, second.calls)
	assert.True(t, report.Interrupted)
	assert.Equal(t, "interrupted", report.Status())
	assert.Equal(t, []string{scripts.Preflight, scripts.Postflight}, hooks.ran)
}

func TestPreflightFailureActions(t *testing.T) {
	for _, action := range []string{config.FailureContinue, config.FailureWarn} {
		cfg := setup(t)
		cfg.PreflightFailureAction = action
		task := &fakeTask{number: 1, name: "A"}
		hooks := &fakeHooks{errs: map[string]error{scripts.Preflight: errors.New("exit 1")}}

		report, err := newOrchestrator(cfg, hooks, task).Run(context.Background(), nil)
		require.NoError(t, err, action)
		assert.Equal(t, 1, task.calls, action)
		assert.Equal(t, result.StatusCompleted, report.Results[0].Status, action)
	}
}

func TestPreflightAbort(t *testing.T) {
	cfg := setup(t)
	cfg.PreflightFailureAction = config.FailureAbort
	a := &fakeTask{number: 1, name: "A"}
	b := &fakeTask{number: 2, name: "B"}
	hooks := &fakeHooks{errs: map[string]error{scripts.Preflight: errors.New("exit 1")}}

	report, err := newOrchestrator(cfg, hooks, a, b).Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrPreflightAbort)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.Equal(t, result.StatusSkipped, r.Status)
	}
	assert.Zero(t, a.calls)
	assert.Equal(t, []string{scripts.Preflight}, hooks.ran)
}

func TestNoPreflight(t *testing.T) {
	cfg := setup(t)
	cfg.NoPreflight = true
	hooks := &fakeHooks{}
	_, err := newOrchestrator(cfg, hooks, &fakeTask{number: 1, name: "A"}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{scripts.Postflight}, hooks.ran)
}

func TestConfirmDeclined(t *testing.T) {
	cfg := setup(t)
	audit := &fakeTask{number: 1, name: "Audit", audit: true}
	action := &fakeTask{number: 2, name: "Action"}
	o := newOrchestrator(cfg, nil, audit, action)
	var asked []string
	o.Confirm = func(t tasks.Task) bool {
		asked = append(asked, t.Name())
		return false
	}

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Action"}, asked)
	assert.Equal(t, result.StatusCompleted, report.Results[0].Status)
	assert.Equal(t, result.StatusSkipped, report.Results[1].Status)
	assert.Zero(t, action.calls)
}

func TestDryRunCarriedToResults(t *testing.T) {
	cfg := setup(t)
	task := &fakeTask{number: 2, name: "Action", run: func(ctx context.Context, rc *tasks.RunContext) (tasks.Outcome, error) {
		assert.True(t, rc.DryRun)
		return counts(2, 2, 0), nil
	}}
	o := New(cfg, &config.Lists{}, tasks.RunContext{DryRun: true}, nil)
	o.Tasks = []tasks.Task{task}
	o.Confirm = func(tasks.Task) bool { return false }

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.True(t, report.Results[0].DryRun)
	assert.Equal(t, 1, task.calls, "dry runs are not confirmed")
}

func TestNumbers(t *testing.T) {
	cfg := config.GetDefaultConfig(t.TempDir())
	o := New(cfg, nil, tasks.RunContext{}, nil)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, o.Numbers())
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	lock, err := AcquireLock(path)
	require.NoError(t, err)

	_, err = AcquireLock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path)

	lock, err = AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestLockStale(t *testing.T) {
	old := pidExists
	pidExists = func(pid int32) (bool, error) { return false, nil }
	t.Cleanup(func() { pidExists = old })

	path := filepath.Join(t.TempDir(), LockFileName)
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0644))

	lock, err := AcquireLock(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))
	require.NoError(t, lock.Release())
}

func TestLockHeldByLiveProcess(t *testing.T) {
	old := pidExists
	pidExists = func(pid int32) (bool, error) { return true, nil }
	t.Cleanup(func() { pidExists = old })

	path := filepath.Join(t.TempDir(), LockFileName)
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0644))
	_, err := AcquireLock(path)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestLockPath(t *testing.T) {
	cfg := config.GetDefaultConfig(t.TempDir())
	assert.Equal(t, filepath.Join(filepath.Dir(cfg.HistoryPath), LockFileName), LockPath(cfg))
}
