// pkg/orchestrator/orchestrator.go - runs the selected tasks one at a time
// and collects one ModuleResult per selected task.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/progress"
	"github.com/windowsadmins/winmaint/pkg/result"
	"github.com/windowsadmins/winmaint/pkg/scripts"
	"github.com/windowsadmins/winmaint/pkg/tasks"
)

// ErrPreflightAbort is returned when the preflight script fails and the
// configured failure action is abort.
var ErrPreflightAbort = errors.New("preflight script failed")

// Hooks runs the named pre/postflight hook. scripts.ErrNotFound means there is nothing to run.
type Hooks interface {
	Run(ctx context.Context, name string) error
}

// Orchestrator sequences tasks for one run.
type Orchestrator struct {
	Config *config.Configuration
	// Base is copied for every run; InventoryDir is filled in per session.
	Base  tasks.RunContext
	Hooks Hooks
	Tasks []tasks.Task
	// Confirm is asked before each non-audit task. Nil means yes.
	Confirm func(t tasks.Task) bool

	RunType      string
	ConfigSource string
	ConfigHash   string

	now func() time.Time
}

// New returns an Orchestrator running every known task.
func New(cfg *config.Configuration, lists *config.Lists, base tasks.RunContext, hooks Hooks) *Orchestrator {
	base.Config = cfg
	base.Lists = lists
	return &Orchestrator{
		Config:       cfg,
		Base:         base,
		Hooks:        hooks,
		Tasks:        tasks.All(),
		ConfigSource: cfg.Source,
		now:          time.Now,
	}
}

// Numbers returns the task numbers this orchestrator knows.
func (o *Orchestrator) Numbers() []int {
	out := make([]int, 0, len(o.Tasks))
	for _, t := range o.Tasks {
		out = append(out, t.Number())
	}
	return out
}

func (o *Orchestrator) progress() progress.Reporter {
	if o.Base.Progress == nil {
		return progress.NewNoOpReporter()
	}
	return o.Base.Progress
}

func (o *Orchestrator) selected(selection []int) ([]tasks.Task, error) {
	if len(selection) == 0 {
		return o.Tasks, nil
	}
	byNumber := make(map[int]tasks.Task, len(o.Tasks))
	for _, t := range o.Tasks {
		byNumber[t.Number()] = t
	}
	var out []tasks.Task
	for _, n := range selection {
		t, ok := byNumber[n]
		if !ok {
			return nil, fmt.Errorf("unknown task number %d", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// Run executes the selected tasks in order. An empty selection runs every
// task. The returned report always has one result per selected task; the
// error is only set for a preflight abort or a bad selection.
func (o *Orchestrator) Run(ctx context.Context, selection []int) (*result.RunReport, error) {
	if o.now == nil {
		o.now = time.Now
	}
	selectedTasks, err := o.selected(selection)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	report := &result.RunReport{
		SessionID:    logging.GetSessionID(),
		Host:         hostname,
		RunType:      o.RunType,
		DryRun:       o.Base.DryRun,
		ConfigSource: o.ConfigSource,
		ConfigHash:   o.ConfigHash,
		StartedAt:    o.now(),
	}

	rc := o.Base
	rc.InventoryDir = filepath.Join(o.Config.InventoryPath, o.sessionName(report.StartedAt))
	if err := os.MkdirAll(rc.InventoryDir, 0755); err != nil {
		logging.Warn("Failed to create inventory directory", "path", rc.InventoryDir, "error", err)
		rc.InventoryDir = ""
	}

	logging.Info("Starting maintenance run",
		"tasks", len(selectedTasks), "dry_run", rc.DryRun, "session", report.SessionID)

	if err := o.runHook(ctx, scripts.Preflight, o.Config.PreflightFailureAction); err != nil {
		for _, t := range selectedTasks {
			report.Results = append(report.Results, o.skipped(t, "preflight aborted the run"))
		}
		o.finish(report)
		return report, fmt.Errorf("%w: %v", ErrPreflightAbort, err)
	}

	prog := o.progress()
	for i, t := range selectedTasks {
		prog.Percent(i * 100 / len(selectedTasks))
		report.Results = append(report.Results, o.runOne(ctx, &rc, t))
		if ctx.Err() != nil {
			report.Interrupted = true
		}
	}
	prog.Percent(100)

	// The postflight runs on a fresh context so it still runs after an interrupt.
	if err := o.runHook(context.WithoutCancel(ctx), scripts.Postflight, o.Config.PostflightFailureAction); err != nil {
		logging.Error("Postflight failed with abort action", "error", err)
	}

	o.finish(report)
	return report, nil
}

func (o *Orchestrator) sessionName(start time.Time) string {
	if dir := logging.GetCurrentLogDir(); dir != "" {
		return filepath.Base(dir)
	}
	return start.Format("2006-01-02-150405")
}

// runHook runs one hook and applies the failure action. Only abort returns an error.
func (o *Orchestrator) runHook(ctx context.Context, name, action string) error {
	if o.Hooks == nil || (name == scripts.Preflight && o.Config.NoPreflight) {
		return nil
	}
	err := o.Hooks.Run(ctx, name)
	if err == nil || errors.Is(err, scripts.ErrNotFound) {
		return nil
	}
	switch action {
	case config.FailureAbort:
		logging.Error("Hook failed, aborting", "hook", name, "error", err)
		return err
	case config.FailureWarn:
		logging.Warn("Hook failed, continuing", "hook", name, "error", err)
	default:
		logging.Info("Hook failed, continuing", "hook", name, "error", err)
	}
	return nil
}

// runOne produces the result of a single task, whatever the task does.
func (o *Orchestrator) runOne(ctx context.Context, rc *tasks.RunContext, t tasks.Task) result.ModuleResult {
	if !o.Config.ModuleEnabled(t.Name()) {
		logging.LogModuleSkipped(t.Name(), "disabled in configuration")
		mr := o.base(t)
		mr.Status = result.StatusDisabled
		return mr
	}
	if ctx.Err() != nil {
		return o.skipped(t, "run cancelled")
	}
	if !t.Audit() && !rc.DryRun && o.Confirm != nil && !o.Confirm(t) {
		return o.skipped(t, "declined by user")
	}

	mr := o.base(t)
	mr.StartedAt = o.now()
	o.progress().Message(fmt.Sprintf("Task %d: %s", t.Number(), t.Name()))
	logging.LogModuleStart(t.Name(), t.Number(), rc.DryRun)

	out, err := runTask(ctx, rc, t)
	mr.Duration = o.now().Sub(mr.StartedAt)
	mr.Counts = out.Counts
	mr.Inventory = out.Inventory

	switch {
	case err != nil:
		mr.Status = result.StatusFailed
		mr.Error = err.Error()
		logging.LogModuleFailed(t.Name(), err, mr.Duration)
		o.progress().Error(err)
	case out.Failed > 0:
		mr.Status = result.StatusFailed
		mr.Error = fmt.Sprintf("%d of %d items failed", out.Failed, out.Detected)
		logging.LogModuleFailed(t.Name(), errors.New(mr.Error), mr.Duration)
	default:
		mr.Status = result.StatusCompleted
		mr.Success = true
		logging.LogModuleComplete(t.Name(), out.Detected, out.Processed, out.Failed, mr.Duration)
	}
	return mr
}

// runTask calls t.Run and turns a panic into an error.
func runTask(ctx context.Context, rc *tasks.RunContext, t tasks.Task) (out tasks.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Task panicked", "module", t.Name(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx, rc)
}

func (o *Orchestrator) base(t tasks.Task) result.ModuleResult {
	return result.ModuleResult{
		Module:     t.Name(),
		TaskNumber: t.Number(),
		DryRun:     o.Base.DryRun,
	}
}

func (o *Orchestrator) skipped(t tasks.Task, reason string) result.ModuleResult {
	logging.LogModuleSkipped(t.Name(), reason)
	mr := o.base(t)
	mr.Status = result.StatusSkipped
	mr.Error = reason
	return mr
}

// finish stamps the report and closes the structured session.
func (o *Orchestrator) finish(report *result.RunReport) {
	report.FinishedAt = o.now()
	totals := report.Totals()
	byStatus := report.CountByStatus()

	summary := logging.SessionSummary{
		TotalModules:   len(report.Results),
		Succeeded:      byStatus[result.StatusCompleted],
		Failed:         byStatus[result.StatusFailed],
		Skipped:        byStatus[result.StatusSkipped] + byStatus[result.StatusDisabled],
		ItemsDetected:  totals.Detected,
		ItemsProcessed: totals.Processed,
		ItemsFailed:    totals.Failed,
		Duration:       report.Duration(),
	}
	for _, mr := range report.Results {
		if mr.Status == result.StatusCompleted || mr.Status == result.StatusFailed {
			summary.ModulesRun = append(summary.ModulesRun, mr.Module)
		}
	}
	if err := logging.EndSession(report.Status(), summary); err != nil {
		logging.Debug("Failed to end session", "error", err)
	}
	logging.Info("Maintenance run finished",
		"status", report.Status(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration.Round(time.Millisecond))
}
