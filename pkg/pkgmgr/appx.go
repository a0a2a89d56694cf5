package pkgmgr

import (
	"context"
	"fmt"

	"github.com/windowsadmins/winmaint/pkg/pwsh"
)

// AppxManager removes Store apps with the Appx cmdlets.
type AppxManager struct {
	Shell *pwsh.Shell
}

// NewAppx returns an Appx adapter.
func NewAppx(shell *pwsh.Shell) *AppxManager {
	return &AppxManager{Shell: shell}
}

func (a *AppxManager) Name() string { return Appx }

type appxPackage struct {
	Name            string `json:"Name"`
	Version         string `json:"Version"`
	PackageFullName string `json:"PackageFullName"`
}

// List returns Appx packages installed for any user.
func (a *AppxManager) List(ctx context.Context) ([]Package, error) {
	var raw []appxPackage
	if err := a.Shell.RunJSON(ctx, "Get-AppxPackage -AllUsers | Select-Object Name, @{n='Version';e={[string]$_.Version}}, PackageFullName", &raw); err != nil {
		return nil, fmt.Errorf("Get-AppxPackage: %w", err)
	}
	pkgs := make([]Package, 0, len(raw))
	for _, p := range raw {
		pkgs = append(pkgs, Package{ID: p.Name, Name: p.Name, Version: p.Version, Source: Appx, Origin: p.PackageFullName})
	}
	return pkgs, nil
}

// Uninstall removes the package for all users and drops its provisioned copy
// so new profiles do not get it back.
func (a *AppxManager) Uninstall(ctx context.Context, id string) error {
	q := pwsh.Quote(id)
	script := fmt.Sprintf("Get-AppxPackage -AllUsers -Name %s | Remove-AppxPackage -AllUsers -ErrorAction Stop; "+
		"Get-AppxProvisionedPackage -Online | Where-Object DisplayName -eq %s | Remove-AppxProvisionedPackage -Online | Out-Null", q, q)
	if _, err := a.Shell.Run(ctx, script); err != nil {
		return fmt.Errorf("remove appx %s: %w", id, err)
	}
	return nil
}

// Install is not supported for Appx packages.
func (a *AppxManager) Install(ctx context.Context, id, version string) error {
	return fmt.Errorf("appx install %s: %w", id, ErrUnsupported)
}

// Upgrade is not supported for Appx packages.
func (a *AppxManager) Upgrade(ctx context.Context, id string) error {
	return fmt.Errorf("appx upgrade %s: %w", id, ErrUnsupported)
}
