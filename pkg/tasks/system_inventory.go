package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/inventory"
	"github.com/windowsadmins/winmaint/pkg/result"
)

// systemInventory records host facts and installed packages. It never changes anything.
type systemInventory struct{}

func (systemInventory) Number() int         { return 1 }
func (systemInventory) Name() string        { return config.ModuleSystemInventory }
func (systemInventory) Description() string { return "Collect hardware, OS and installed software facts" }
func (systemInventory) Audit() bool         { return true }

func (t systemInventory) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	inv := inventory.New(t.Name())
	inventory.ScanSystem(ctx, inv)
	inventory.ScanApps(ctx, rc.Managers, inv)
	path := rc.saveInventory(inv)

	out := Outcome{Counts: result.Counts{Detected: len(inv.Items)}, Inventory: path}
	if len(inv.Items) == 0 && len(inv.Errors) > 0 {
		return out, fmt.Errorf("system scan produced no items: %s", strings.Join(inv.Errors, "; "))
	}
	return out, nil
}
