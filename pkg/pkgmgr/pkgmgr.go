// pkg/pkgmgr/pkgmgr.go - thin adapters over winget, Chocolatey and Appx.
//
// Adapters only build arguments and parse output. Exit codes that mean
// "nothing to do" are returned wrapped with retry.Permanent so callers stop
// retrying them.

package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/execx"
	"github.com/windowsadmins/winmaint/pkg/pwsh"
)

// Manager names.
const (
	Winget = "winget"
	Choco  = "choco"
	Appx   = "appx"
)

var (
	// ErrUnsupported is returned for operations a manager cannot perform.
	ErrUnsupported = errors.New("operation not supported by package manager")
	// ErrNotFound means the manager does not know the package.
	ErrNotFound = errors.New("package not found")
	// ErrNotApplicable means the package is already in the requested state.
	ErrNotApplicable = errors.New("no applicable change")
)

// Package is an installed package as reported by a manager.
type Package struct {
	ID        string
	Name      string
	Version   string
	Available string // newer version offered by the manager, if any
	Source    string // manager name
	Origin    string // repository reported by the manager (winget Source column)
}

// Manager is the interface every package manager adapter implements.
type Manager interface {
	Name() string
	List(ctx context.Context) ([]Package, error)
	Install(ctx context.Context, id, version string) error
	Uninstall(ctx context.Context, id string) error
	Upgrade(ctx context.Context, id string) error
}

// New builds the managers named in order. Unknown names are an error.
func New(names []string, runner execx.Runner, shell *pwsh.Shell) ([]Manager, error) {
	var managers []Manager
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case Winget:
			managers = append(managers, NewWinget(runner))
		case Choco:
			managers = append(managers, NewChoco(runner))
		case Appx:
			managers = append(managers, NewAppx(shell))
		default:
			return nil, fmt.Errorf("unknown package manager %q", name)
		}
	}
	return managers, nil
}

// Find returns the manager with the given name.
func Find(managers []Manager, name string) (Manager, bool) {
	for _, m := range managers {
		if strings.EqualFold(m.Name(), name) {
			return m, true
		}
	}
	return nil, false
}
