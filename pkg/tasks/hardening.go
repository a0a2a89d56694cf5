package tasks

import (
	"context"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/inventory"
)

// telemetryDisable applies telemetry.json: registry values, service start
// modes and scheduled tasks.
type telemetryDisable struct{}

func (telemetryDisable) Number() int  { return 4 }
func (telemetryDisable) Name() string { return config.ModuleTelemetryDisable }
func (telemetryDisable) Description() string {
	return "Disable telemetry registry values, services and scheduled tasks"
}
func (telemetryDisable) Audit() bool { return false }

func (t telemetryDisable) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	list := rc.lists().Telemetry
	inv := inventory.New(t.Name())
	reg := scanRegistry(rc.Registry, list.Registry, inv)
	svc := scanServices(ctx, rc.Services, list.Services, inv)
	sched := scanScheduledTasks(ctx, rc.Scheduler, list.ScheduledTasks, inv)
	out := Outcome{Inventory: rc.saveInventory(inv)}

	c, err := rc.applyRegistry(ctx, t.Name(), reg)
	out.Counts = out.Add(c)
	if err != nil {
		return out, err
	}
	c, err = rc.applyServices(ctx, t.Name(), svc)
	out.Counts = out.Add(c)
	if err != nil {
		return out, err
	}
	c, err = rc.applyScheduledTasks(ctx, t.Name(), sched)
	out.Counts = out.Add(c)
	return out, err
}

// securityHardening applies security.json: registry values and firewall profiles.
type securityHardening struct{}

func (securityHardening) Number() int         { return 6 }
func (securityHardening) Name() string        { return config.ModuleSecurityHardening }
func (securityHardening) Description() string { return "Apply security registry baseline and enable firewall profiles" }
func (securityHardening) Audit() bool         { return false }

func (t securityHardening) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	list := rc.lists().Security
	inv := inventory.New(t.Name())
	reg := scanRegistry(rc.Registry, list.Registry, inv)
	fw := scanFirewall(ctx, rc.Firewall, list.FirewallProfiles, inv)
	out := Outcome{Inventory: rc.saveInventory(inv)}

	c, err := rc.applyRegistry(ctx, t.Name(), reg)
	out.Counts = out.Add(c)
	if err != nil {
		return out, err
	}
	c, err = rc.applyFirewall(ctx, t.Name(), fw)
	out.Counts = out.Add(c)
	return out, err
}
