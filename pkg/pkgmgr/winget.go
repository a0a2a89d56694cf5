package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/execx"
	"github.com/windowsadmins/winmaint/pkg/retry"
)

// winget exit codes (HRESULTs reported as the process exit code)
const (
	wingetNoApplicationsFound   uint32 = 0x8A150014
	wingetUpdateNotApplicable   uint32 = 0x8A15002B
	wingetPackageAlreadyInstalled uint32 = 0x8A150061
)

var wingetCommon = []string{"--exact", "--silent", "--accept-source-agreements", "--disable-interactivity"}

// WingetManager drives winget.exe.
type WingetManager struct {
	Runner execx.Runner
	Exe    string
}

// NewWinget returns a winget adapter.
func NewWinget(r execx.Runner) *WingetManager {
	return &WingetManager{Runner: r, Exe: "winget"}
}

func (w *WingetManager) Name() string { return Winget }

// List returns every package winget reports as installed.
func (w *WingetManager) List(ctx context.Context) ([]Package, error) {
	out, err := w.Runner.Run(ctx, w.Exe, "list", "--accept-source-agreements", "--disable-interactivity")
	if err != nil {
		return nil, fmt.Errorf("winget list: %w", err)
	}
	return parseWingetTable(out.Stdout), nil
}

// Install installs id, pinned to version when one is given.
func (w *WingetManager) Install(ctx context.Context, id, version string) error {
	args := append([]string{"install", "--id", id}, wingetCommon...)
	args = append(args, "--accept-package-agreements")
	if version != "" {
		args = append(args, "--version", version)
	}
	return w.run(ctx, args)
}

// Uninstall removes id.
func (w *WingetManager) Uninstall(ctx context.Context, id string) error {
	return w.run(ctx, append([]string{"uninstall", "--id", id}, wingetCommon...))
}

// Upgrade upgrades id to the newest available version.
func (w *WingetManager) Upgrade(ctx context.Context, id string) error {
	args := append([]string{"upgrade", "--id", id}, wingetCommon...)
	return w.run(ctx, append(args, "--accept-package-agreements"))
}

func (w *WingetManager) run(ctx context.Context, args []string) error {
	_, err := w.Runner.Run(ctx, w.Exe, args...)
	return classifyWinget(err)
}

func classifyWinget(err error) error {
	if err == nil {
		return nil
	}
	code := execx.ExitCode(err)
	if code == -1 {
		return err
	}
	switch uint32(code) {
	case wingetNoApplicationsFound:
		return retry.Permanent(fmt.Errorf("%w: %v", ErrNotFound, err))
	case wingetUpdateNotApplicable, wingetPackageAlreadyInstalled:
		return retry.Permanent(fmt.Errorf("%w: %v", ErrNotApplicable, err))
	}
	return err
}

// parseWingetTable parses the fixed width table printed by winget list.
// Column offsets come from the header row that precedes the dashed separator.
func parseWingetTable(output string) []Package {
	lines := splitLines(output)

	header := -1
	for i := 1; i < len(lines); i++ {
		sep := strings.TrimSpace(lines[i])
		if len(sep) > 10 && strings.Trim(sep, "-") == "" {
			header = i - 1
			break
		}
	}
	if header < 0 {
		return nil
	}

	head := []rune(lines[header])
	cols := map[string]int{}
	for _, name := range []string{"Name", "Id", "Version", "Available", "Source"} {
		if idx := columnIndex(head, name); idx >= 0 {
			cols[name] = idx
		}
	}
	idCol, okID := cols["Id"]
	verCol, okVer := cols["Version"]
	if !okID || !okVer {
		return nil
	}

	var pkgs []Package
	for _, line := range lines[header+2:] {
		row := []rune(line)
		if strings.TrimSpace(line) == "" || len(row) <= idCol {
			continue
		}
		p := Package{
			Name:    field(row, 0, idCol),
			ID:      field(row, idCol, verCol),
			Source:  Winget,
			Version: field(row, verCol, nextCol(cols, verCol, len(row))),
		}
		if c, ok := cols["Available"]; ok {
			p.Available = field(row, c, nextCol(cols, c, len(row)))
		}
		if c, ok := cols["Source"]; ok {
			p.Origin = field(row, c, len(row))
		}
		if p.ID == "" {
			continue
		}
		pkgs = append(pkgs, p)
	}
	return pkgs
}

// splitLines splits on newlines and keeps only the text after the last
// carriage return, which drops winget's progress spinner.
func splitLines(s string) []string {
	raw := strings.Split(s, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if i := strings.LastIndex(l, "\r"); i >= 0 {
			if i == len(l)-1 {
				l = l[:i]
				if j := strings.LastIndex(l, "\r"); j >= 0 {
					l = l[j+1:]
				}
			} else {
				l = l[i+1:]
			}
		}
		lines = append(lines, l)
	}
	return lines
}

func columnIndex(head []rune, name string) int {
	target := []rune(name)
	for i := 0; i+len(target) <= len(head); i++ {
		if string(head[i:i+len(target)]) != name {
			continue
		}
		startOK := i == 0 || head[i-1] == ' '
		end := i + len(target)
		endOK := end == len(head) || head[end] == ' '
		if startOK && endOK {
			return i
		}
	}
	return -1
}

func nextCol(cols map[string]int, after, fallback int) int {
	next := fallback
	for _, c := range cols {
		if c > after && c < next {
			next = c
		}
	}
	return next
}

func field(row []rune, start, end int) string {
	if start >= len(row) {
		return ""
	}
	if end > len(row) {
		end = len(row)
	}
	return strings.TrimSpace(string(row[start:end]))
}
