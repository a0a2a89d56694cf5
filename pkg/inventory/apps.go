package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/pkgmgr"
)

// ScanApps lists installed packages from every manager into inv. A manager
// that fails is recorded in inv.Errors and the scan moves on. The returned
// map holds the error of every manager that was not scanned, keyed by
// lower-case manager name.
func ScanApps(ctx context.Context, managers []pkgmgr.Manager, inv *Inventory) map[string]error {
	failed := map[string]error{}
	for i, m := range managers {
		if err := ctx.Err(); err != nil {
			inv.AddError(err)
			for _, rest := range managers[i:] {
				failed[strings.ToLower(rest.Name())] = err
			}
			return failed
		}
		pkgs, err := m.List(ctx)
		if err != nil {
			logging.Warn("Package manager scan failed", "manager", m.Name(), "error", err)
			inv.AddError(fmt.Errorf("%s: %w", m.Name(), err))
			failed[strings.ToLower(m.Name())] = err
			continue
		}
		logging.Debug("Package manager scan finished", "manager", m.Name(), "packages", len(pkgs))
		for _, p := range pkgs {
			inv.Add(PackageItem(p))
		}
	}
	return failed
}

// PackageItem converts a manager package into an inventory item.
func PackageItem(p pkgmgr.Package) Item {
	item := Item{ID: p.ID, Name: p.Name, Version: p.Version, Source: p.Source, State: "installed"}
	props := map[string]string{}
	if p.Available != "" {
		props["available"] = p.Available
	}
	if p.Origin != "" {
		props["origin"] = p.Origin
	}
	if len(props) > 0 {
		item.Properties = props
	}
	return item
}
