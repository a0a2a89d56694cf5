package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

// Chocolatey exit codes that report success, some with a pending reboot.
var chocoSuccessCodes = map[int]bool{0: true, 1641: true, 3010: true}

// ChocoManager drives choco.exe.
type ChocoManager struct {
	Runner execx.Runner
	Exe    string
}

// NewChoco returns a Chocolatey adapter.
func NewChoco(r execx.Runner) *ChocoManager {
	return &ChocoManager{Runner: r, Exe: "choco"}
}

func (c *ChocoManager) Name() string { return Choco }

// List returns locally installed Chocolatey packages.
func (c *ChocoManager) List(ctx context.Context) ([]Package, error) {
	out, err := c.Runner.Run(ctx, c.Exe, "list", "--limit-output")
	if err != nil {
		return nil, fmt.Errorf("choco list: %w", err)
	}
	var pkgs []Package
	for _, line := range strings.Split(out.Stdout, "\n") {
		id, version, ok := strings.Cut(strings.TrimSpace(line), "|")
		if !ok || id == "" {
			continue
		}
		pkgs = append(pkgs, Package{ID: id, Name: id, Version: strings.TrimSpace(version), Source: Choco})
	}
	return pkgs, nil
}

// Install installs id, pinned to version when one is given.
func (c *ChocoManager) Install(ctx context.Context, id, version string) error {
	args := []string{"install", id, "-y", "--no-progress"}
	if version != "" {
		args = append(args, "--version", version)
	}
	return c.run(ctx, args)
}

// Uninstall removes id.
func (c *ChocoManager) Uninstall(ctx context.Context, id string) error {
	return c.run(ctx, []string{"uninstall", id, "-y", "--no-progress"})
}

// Upgrade upgrades id to the newest available version.
func (c *ChocoManager) Upgrade(ctx context.Context, id string) error {
	return c.run(ctx, []string{"upgrade", id, "-y", "--no-progress"})
}

func (c *ChocoManager) run(ctx context.Context, args []string) error {
	_, err := c.Runner.Run(ctx, c.Exe, args...)
	if err != nil && chocoSuccessCodes[execx.ExitCode(err)] {
		return nil
	}
	return err
}
