package tasks

import (
	"context"
	"strconv"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/diff"
	"github.com/windowsadmins/winmaint/pkg/inventory"
	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/pwsh"
)

// windowsUpdates installs pending updates that are not excluded. It never reboots.
type windowsUpdates struct{}

func (windowsUpdates) Number() int         { return 5 }
func (windowsUpdates) Name() string        { return config.ModuleWindowsUpdates }
func (windowsUpdates) Description() string { return "Install pending Windows updates without rebooting" }
func (windowsUpdates) Audit() bool         { return false }

func (t windowsUpdates) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	policy := rc.lists().Updates
	inv := inventory.New(t.Name())

	pending, err := rc.Updates.PendingUpdates(ctx, policy.IncludeDrivers)
	if err != nil {
		inv.AddError(err)
		return Outcome{Inventory: rc.saveInventory(inv)}, err
	}

	// Only the allowed updates are matched so an excluded update can never
	// share an ID or title with a target.
	var allowed []inventory.Item
	var targets []diff.Target
	for _, u := range pending {
		item := updateItem(u)
		inv.Add(item)
		if reason := excluded(u, policy); reason != "" {
			logging.Info("Update excluded", "kb", u.KB, "title", u.Title, "reason", reason)
			continue
		}
		allowed = append(allowed, item)
		targets = append(targets, diff.Target{ID: item.ID, Name: u.Title})
	}
	out := Outcome{Inventory: rc.saveInventory(inv)}

	list := diff.Intersect(allowed, targets)
	rebootNeeded := false
	counts, err := rc.applyDiff(ctx, list, applier{
		module: t.Name(),
		action: constAction("install_update"),
		check: func(it diff.Item) string {
			if it.Detected.Properties["kb"] == "" {
				return "update has no KB article id"
			}
			return ""
		},
		apply: func(ctx context.Context, it diff.Item) error {
			if err := rc.Updates.InstallUpdate(ctx, it.Detected.Properties["kb"]); err != nil {
				return err
			}
			if it.Detected.Properties["reboot_required"] == "true" {
				rebootNeeded = true
			}
			return nil
		},
	})
	if rebootNeeded {
		logging.Warn("Installed updates require a reboot; not rebooting", "module", t.Name())
	}
	out.Counts = counts
	return out, err
}

func updateItem(u pwsh.Update) inventory.Item {
	id := u.KB
	if id == "" {
		id = u.Title
	}
	return inventory.Item{
		ID:     id,
		Name:   u.Title,
		Source: "windowsupdate",
		State:  "pending",
		Properties: map[string]string{
			"kb":              u.KB,
			"size_bytes":      strconv.FormatInt(u.Size, 10),
			"reboot_required": strconv.FormatBool(u.RebootRequired),
		},
	}
}

// excluded returns why u is excluded by policy, or "".
func excluded(u pwsh.Update, policy config.UpdatesList) string {
	for _, kb := range policy.ExcludeKBs {
		if u.KB != "" && strings.EqualFold(pwsh.NormalizeKB(kb), u.KB) {
			return "excluded KB " + kb
		}
	}
	for _, pattern := range policy.ExcludeTitles {
		if diff.Match(pattern, u.Title) {
			return "excluded title " + pattern
		}
	}
	return ""
}
