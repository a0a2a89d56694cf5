// pkg/tasks/task.go - the numbered maintenance tasks and the pipeline they share.
//
// Every action task follows the same steps: scan into an inventory, save it,
// build a diff list, then act on the diff items through applyDiff. applyDiff
// is the only place a task's change function is called from, so nothing
// outside the diff list is ever touched.

package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/diff"
	"github.com/windowsadmins/winmaint/pkg/inventory"
	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/pkgmgr"
	"github.com/windowsadmins/winmaint/pkg/progress"
	"github.com/windowsadmins/winmaint/pkg/pwsh"
	"github.com/windowsadmins/winmaint/pkg/regedit"
	"github.com/windowsadmins/winmaint/pkg/result"
	"github.com/windowsadmins/winmaint/pkg/retry"
	"github.com/windowsadmins/winmaint/pkg/schtasks"
	"github.com/windowsadmins/winmaint/pkg/services"
)

// Task is one numbered maintenance module.
type Task interface {
	Number() int
	Name() string
	Description() string
	// Audit reports whether the task only scans and never changes the system.
	Audit() bool
	Run(ctx context.Context, rc *RunContext) (Outcome, error)
}

// Outcome is what a task reports back to the orchestrator.
type Outcome struct {
	result.Counts
	Inventory string // saved inventory path
}

// UpdateSource lists and installs Windows updates.
type UpdateSource interface {
	PendingUpdates(ctx context.Context, includeDrivers bool) ([]pwsh.Update, error)
	InstallUpdate(ctx context.Context, kb string) error
}

// Firewall reads and enables firewall profiles.
type Firewall interface {
	FirewallProfiles(ctx context.Context) ([]pwsh.FirewallProfile, error)
	SetFirewallProfile(ctx context.Context, name string, enabled bool) error
}

// BlockingChecker reports which of the named applications are running.
type BlockingChecker interface {
	RunningApps(apps []string) []string
}

// RunContext carries everything a task needs. The orchestrator builds one per run.
type RunContext struct {
	Config       *config.Configuration
	Lists        *config.Lists
	DryRun       bool
	InventoryDir string

	Registry  regedit.Store
	Services  services.Controller
	Scheduler schtasks.Scheduler
	Managers  []pkgmgr.Manager
	Updates   UpdateSource
	Firewall  Firewall
	Blocking  BlockingChecker
	Retry     retry.RetryConfig
	Progress  progress.Reporter
}

func (rc *RunContext) progress() progress.Reporter {
	if rc.Progress == nil {
		return progress.NewNoOpReporter()
	}
	return rc.Progress
}

func (rc *RunContext) lists() *config.Lists {
	if rc.Lists == nil {
		return &config.Lists{}
	}
	return rc.Lists
}

// All returns every task in task-number order.
func All() []Task {
	return []Task{
		&systemInventory{},
		&bloatwareRemoval{},
		&essentialApps{},
		&telemetryDisable{},
		&windowsUpdates{},
		&securityHardening{},
	}
}

// ByNumber returns the task with the given number.
func ByNumber(n int) (Task, bool) {
	for _, t := range All() {
		if t.Number() == n {
			return t, true
		}
	}
	return nil, false
}

// saveInventory persists inv. A failed save is logged and does not stop the task.
func (rc *RunContext) saveInventory(inv *inventory.Inventory) string {
	if rc.InventoryDir == "" {
		return ""
	}
	path, err := inventory.Save(inv, rc.InventoryDir)
	if err != nil {
		logging.Warn("Failed to save inventory", "module", inv.Module, "error", err)
		return ""
	}
	logging.Debug("Inventory saved", "module", inv.Module, "path", path, "items", len(inv.Items))
	return path
}

// applier describes how a task acts on the items of one diff list.
type applier struct {
	module string
	// action names the change made to an item (uninstall, install, set, ...).
	action func(it diff.Item) string
	// check returns a non-empty reason to skip an item.
	check func(it diff.Item) string
	apply func(ctx context.Context, it diff.Item) error
}

// applyDiff runs a.apply for every item of list unless the run is a dry run.
// Item failures are counted and logged; only cancellation ends the loop early,
// in which case the items not reached are counted as skipped. An item the
// package manager reports as not found or already in the wanted state is
// counted as skipped.
func (rc *RunContext) applyDiff(ctx context.Context, list diff.List, a applier) (result.Counts, error) {
	c := result.Counts{Detected: len(list)}
	logDiff(a.module, list)

	for i, it := range list {
		if err := ctx.Err(); err != nil {
			c.Skipped += len(list) - i
			return c, err
		}
		action := a.action(it)
		id := it.ID()
		reason := logging.WithContext("reason", string(it.Reason))
		rc.progress().Detail(fmt.Sprintf("%s %s", action, id))

		if a.check != nil {
			if skip := a.check(it); skip != "" {
				logging.LogItemAction(a.module, id, action, logging.StatusSkipped, nil, logging.WithContext("skip_reason", skip), reason)
				c.Skipped++
				continue
			}
		}

		if rc.DryRun {
			logging.LogItemAction(a.module, id, action, logging.StatusWouldApply, nil, reason)
			c.Processed++
			continue
		}

		start := time.Now()
		err := a.apply(ctx, it)
		if errors.Is(err, pkgmgr.ErrNotFound) || errors.Is(err, pkgmgr.ErrNotApplicable) {
			logging.LogItemAction(a.module, id, action, logging.StatusSkipped, nil,
				logging.WithContext("skip_reason", err.Error()), reason, logging.WithDuration(time.Since(start)))
			c.Skipped++
			continue
		}
		logging.LogItemAction(a.module, id, action, logging.StatusCompleted, err, reason, logging.WithDuration(time.Since(start)))
		if err != nil {
			rc.progress().Error(err)
			c.Failed++
			continue
		}
		c.Processed++
	}
	return c, nil
}

func logDiff(module string, list diff.List) {
	logging.Info("Diff list computed", "module", module, "items", len(list))
	ids := list.IDs()
	if err := logging.Event(logging.EventModule, "diff", logging.StatusCompleted,
		fmt.Sprintf("%s diff has %d items", module, len(list)),
		logging.WithModule(module),
		logging.WithContext("items", ids)); err != nil {
		logging.Debug("Failed to write diff event", "error", err)
	}
	if len(ids) > 0 {
		logging.Debug("Diff items", "module", module, "ids", strings.Join(ids, ", "))
	}
}

func constAction(name string) func(diff.Item) string {
	return func(diff.Item) string { return name }
}
