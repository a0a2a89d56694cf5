package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/diff"
	"github.com/windowsadmins/winmaint/pkg/inventory"
	"github.com/windowsadmins/winmaint/pkg/pwsh"
	"github.com/windowsadmins/winmaint/pkg/regedit"
	"github.com/windowsadmins/winmaint/pkg/result"
	"github.com/windowsadmins/winmaint/pkg/schtasks"
	"github.com/windowsadmins/winmaint/pkg/services"
)

const stateUnknown = "unknown"

// registryPlan is the scan of a list of registry settings.
type registryPlan struct {
	settings []config.RegistrySetting
	desired  []regedit.Value
	targets  []diff.Target
	items    []inventory.Item
}

// scanRegistry reads the current value of every setting. Absent values get no
// item so they show up as drift; unreadable values get an unknown state.
func scanRegistry(store regedit.Store, settings []config.RegistrySetting, inv *inventory.Inventory) *registryPlan {
	p := &registryPlan{settings: settings}
	for _, s := range settings {
		var want regedit.Value
		t, err := regedit.ParseType(s.Type)
		if err == nil {
			want, err = regedit.NewValue(t, string(s.Value))
		}
		p.desired = append(p.desired, want)
		p.targets = append(p.targets, diff.Target{ID: s.ID(), Name: s.Description, Desired: want.String()})
		if err != nil {
			inv.AddError(fmt.Errorf("%s: %w", s.ID(), err))
			continue
		}

		hive, path, err := regedit.ParsePath(s.Path)
		if err != nil {
			inv.AddError(err)
			continue
		}
		cur, ok, err := store.Get(hive, path, s.Name)
		switch {
		case err != nil:
			inv.AddError(fmt.Errorf("%s: %w", s.ID(), err))
			p.items = append(p.items, inventory.Item{ID: s.ID(), Source: "registry", State: stateUnknown,
				Properties: map[string]string{"error": err.Error()}})
		case ok:
			p.items = append(p.items, inventory.Item{ID: s.ID(), Source: "registry", State: cur.String()})
		}
	}
	inv.Add(p.items...)
	return p
}

func (rc *RunContext) applyRegistry(ctx context.Context, module string, p *registryPlan) (result.Counts, error) {
	return rc.applyDiff(ctx, diff.Drift(p.targets, p.items), applier{
		module: module,
		action: constAction("set_registry"),
		check: func(it diff.Item) string {
			if p.desired[it.Index()].Type == "" {
				return "invalid desired value"
			}
			if it.Detected != nil && it.Detected.State == stateUnknown {
				return "current value unreadable: " + it.Detected.Properties["error"]
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			s := p.settings[it.Index()]
			hive, path, err := regedit.ParsePath(s.Path)
			if err != nil {
				return err
			}
			return rc.Registry.Set(hive, path, s.Name, p.desired[it.Index()])
		},
	})
}

type servicePlan struct {
	settings []config.ServiceSetting
	targets  []diff.Target
	items    []inventory.Item
}

func scanServices(ctx context.Context, ctrl services.Controller, settings []config.ServiceSetting, inv *inventory.Inventory) *servicePlan {
	p := &servicePlan{settings: settings}
	for _, s := range settings {
		p.targets = append(p.targets, diff.Target{ID: s.Name, Desired: services.NormalizeStartMode(s.StartMode)})
		svc, err := ctrl.Query(ctx, s.Name)
		if errors.Is(err, services.ErrNotFound) {
			continue
		}
		if err != nil {
			inv.AddError(err)
			p.items = append(p.items, inventory.Item{ID: s.Name, Source: "service", State: stateUnknown,
				Properties: map[string]string{"error": err.Error()}})
			continue
		}
		state := svc.StartMode
		if s.Stop && svc.Running() {
			// A running service still drifts from a stop request even when disabled
			state += ",running"
		}
		p.items = append(p.items, inventory.Item{
			ID:     s.Name,
			Name:   svc.DisplayName,
			Source: "service",
			State:  state,
			Properties: map[string]string{
				"start_mode": svc.StartMode,
				"state":      svc.State,
			},
		})
	}
	inv.Add(p.items...)
	return p
}

func (rc *RunContext) applyServices(ctx context.Context, module string, p *servicePlan) (result.Counts, error) {
	return rc.applyDiff(ctx, diff.Drift(p.targets, p.items), applier{
		module: module,
		action: constAction("configure_service"),
		check: func(it diff.Item) string {
			switch {
			case it.Detected == nil:
				return "service not installed"
			case it.Detected.State == stateUnknown:
				return "service state unknown: " + it.Detected.Properties["error"]
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			s := p.settings[it.Index()]
			if it.Detected.Properties["start_mode"] != it.Target.Desired {
				if err := rc.Services.SetStartMode(ctx, s.Name, it.Target.Desired); err != nil {
					return err
				}
			}
			if s.Stop && it.Detected.Properties["state"] == "running" {
				return rc.Services.Stop(ctx, s.Name)
			}
			return nil
		},
	})
}

const (
	taskEnabled  = "enabled"
	taskDisabled = "disabled"
)

type taskPlan struct {
	targets []diff.Target
	items   []inventory.Item
}

func scanScheduledTasks(ctx context.Context, sched schtasks.Scheduler, paths []string, inv *inventory.Inventory) *taskPlan {
	p := &taskPlan{}
	for _, path := range paths {
		p.targets = append(p.targets, diff.Target{ID: path, Desired: taskDisabled})
		task, err := sched.Query(ctx, path)
		if errors.Is(err, schtasks.ErrNotFound) {
			continue
		}
		if err != nil {
			inv.AddError(err)
			p.items = append(p.items, inventory.Item{ID: path, Source: "schtasks", State: stateUnknown,
				Properties: map[string]string{"error": err.Error()}})
			continue
		}
		state := taskDisabled
		if task.Enabled() {
			state = taskEnabled
		}
		p.items = append(p.items, inventory.Item{ID: path, Source: "schtasks", State: state,
			Properties: map[string]string{"status": task.Status}})
	}
	inv.Add(p.items...)
	return p
}

func (rc *RunContext) applyScheduledTasks(ctx context.Context, module string, p *taskPlan) (result.Counts, error) {
	return rc.applyDiff(ctx, diff.Drift(p.targets, p.items), applier{
		module: module,
		action: constAction("disable_task"),
		check: func(it diff.Item) string {
			switch {
			case it.Detected == nil:
				return "scheduled task not found"
			case it.Detected.State == stateUnknown:
				return "task state unknown: " + it.Detected.Properties["error"]
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			return rc.Scheduler.Disable(ctx, it.ID())
		},
	})
}

const (
	profileEnabled  = "enabled"
	profileDisabled = "disabled"
)

type firewallPlan struct {
	targets   []diff.Target
	items     []inventory.Item
	queryFail error
}

func scanFirewall(ctx context.Context, fw Firewall, profiles []string, inv *inventory.Inventory) *firewallPlan {
	p := &firewallPlan{}
	for _, name := range profiles {
		p.targets = append(p.targets, diff.Target{ID: name, Desired: profileEnabled})
	}
	if len(profiles) == 0 {
		return p
	}
	found, err := fw.FirewallProfiles(ctx)
	if err != nil {
		inv.AddError(err)
		p.queryFail = err
		return p
	}
	for _, prof := range found {
		p.items = append(p.items, firewallItem(prof))
	}
	inv.Add(p.items...)
	return p
}

func firewallItem(prof pwsh.FirewallProfile) inventory.Item {
	state := profileDisabled
	if prof.Enabled {
		state = profileEnabled
	}
	return inventory.Item{ID: prof.Name, Source: "firewall", State: state}
}

func (rc *RunContext) applyFirewall(ctx context.Context, module string, p *firewallPlan) (result.Counts, error) {
	return rc.applyDiff(ctx, diff.Drift(p.targets, p.items), applier{
		module: module,
		action: constAction("enable_firewall"),
		check: func(it diff.Item) string {
			if p.queryFail != nil {
				return "firewall state unknown: " + p.queryFail.Error()
			}
			if it.Detected == nil {
				return "firewall profile not found"
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			return rc.Firewall.SetFirewallProfile(ctx, it.ID(), true)
		},
	})
}
