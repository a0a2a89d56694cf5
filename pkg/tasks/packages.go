package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/diff"
	"github.com/windowsadmins/winmaint/pkg/inventory"
	"github.com/windowsadmins/winmaint/pkg/pkgmgr"
	"github.com/windowsadmins/winmaint/pkg/retry"
)

func packageTargets(refs []config.PackageRef) []diff.Target {
	targets := make([]diff.Target, len(refs))
	for i, r := range refs {
		targets[i] = diff.Target{
			ID:         strings.TrimSpace(r.ID),
			Name:       r.Name,
			Source:     strings.ToLower(r.Source),
			MinVersion: r.MinVersion,
		}
	}
	return targets
}

func (rc *RunContext) manager(name string) (pkgmgr.Manager, error) {
	m, ok := pkgmgr.Find(rc.Managers, name)
	if !ok {
		return nil, fmt.Errorf("package manager %q is not configured", name)
	}
	return m, nil
}

// installManager picks the manager for a missing package: its listed source,
// or else the first configured manager that can install.
func (rc *RunContext) installManager(source string) (pkgmgr.Manager, error) {
	if source != "" {
		return rc.manager(source)
	}
	for _, m := range rc.Managers {
		if m.Name() != pkgmgr.Appx {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no package manager that can install is configured")
}

// bloatwareRemoval uninstalls detected packages listed in bloatware.json.
type bloatwareRemoval struct{}

func (bloatwareRemoval) Number() int         { return 2 }
func (bloatwareRemoval) Name() string        { return config.ModuleBloatwareRemoval }
func (bloatwareRemoval) Description() string { return "Remove preinstalled apps listed in bloatware.json" }
func (bloatwareRemoval) Audit() bool         { return false }

func (t bloatwareRemoval) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	inv := inventory.New(t.Name())
	inventory.ScanApps(ctx, rc.Managers, inv)
	out := Outcome{Inventory: rc.saveInventory(inv)}

	refs := rc.lists().Bloatware.Packages
	list := diff.Intersect(inv.Items, packageTargets(refs))

	counts, err := rc.applyDiff(ctx, list, applier{
		module: t.Name(),
		action: constAction("uninstall"),
		check: func(it diff.Item) string {
			if rc.Blocking == nil {
				return ""
			}
			if running := rc.Blocking.RunningApps(refs[it.Index()].BlockingApps); len(running) > 0 {
				return "blocking applications running: " + strings.Join(running, ", ")
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			m, err := rc.manager(it.Source())
			if err != nil {
				return err
			}
			return retry.Retry(ctx, rc.Retry, func() error { return m.Uninstall(ctx, it.ID()) })
		},
	})
	out.Counts = counts
	return out, err
}

// essentialApps installs missing and upgrades outdated packages from essential-apps.json.
type essentialApps struct{}

func (essentialApps) Number() int         { return 3 }
func (essentialApps) Name() string        { return config.ModuleEssentialApps }
func (essentialApps) Description() string { return "Install or upgrade apps listed in essential-apps.json" }
func (essentialApps) Audit() bool         { return false }

func (t essentialApps) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	inv := inventory.New(t.Name())
	unscanned := inventory.ScanApps(ctx, rc.Managers, inv)
	out := Outcome{Inventory: rc.saveInventory(inv)}

	targets := packageTargets(rc.lists().Essential.Packages)
	list := diff.Merge(diff.Missing(targets, inv.Items), diff.Outdated(targets, inv.Items))

	counts, err := rc.applyDiff(ctx, list, applier{
		module: t.Name(),
		action: func(it diff.Item) string {
			if it.Reason == diff.ReasonOutdated {
				return "upgrade"
			}
			return "install"
		},
		check: func(it diff.Item) string {
			if it.Reason != diff.ReasonMissing {
				return ""
			}
			m, err := rc.installManager(it.Target.Source)
			if err != nil {
				return ""
			}
			if scanErr, ok := unscanned[strings.ToLower(m.Name())]; ok {
				return fmt.Sprintf("%s could not be scanned: %v", m.Name(), scanErr)
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			if it.Reason == diff.ReasonOutdated {
				m, err := rc.manager(it.Source())
				if err != nil {
					return err
				}
				return retry.Retry(ctx, rc.Retry, func() error { return m.Upgrade(ctx, it.ID()) })
			}
			m, err := rc.installManager(it.Target.Source)
			if err != nil {
				return err
			}
			return retry.Retry(ctx, rc.Retry, func() error { return m.Install(ctx, it.ID(), "") })
		},
	})
	out.Counts = counts
	return out, err
}
