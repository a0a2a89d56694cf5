// pkg/scripts/prepost.go - Functions for running preflight and postflight scripts.

package scripts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/windowsadmins/winmaint/pkg/execx"
	"github.com/windowsadmins/winmaint/pkg/logging"
)

// Hook names, also the script base names in the config directory.
const (
	Preflight  = "preflight"
	Postflight = "postflight"
)

// ErrNotFound means the hook script does not exist.
var ErrNotFound = errors.New("hook script not found")

// FileRunner runs a PowerShell script file.
type FileRunner interface {
	RunFile(ctx context.Context, path string) (execx.Output, error)
}

// HookRunner runs the pre and postflight scripts from a directory.
type HookRunner struct {
	Dir    string
	Runner FileRunner
}

// NewHookRunner returns a HookRunner for <dir>/preflight.ps1 and <dir>/postflight.ps1.
func NewHookRunner(dir string, r FileRunner) *HookRunner {
	return &HookRunner{Dir: dir, Runner: r}
}

// ScriptPath returns the path of the named hook script.
func (h *HookRunner) ScriptPath(name string) string {
	return filepath.Join(h.Dir, name+".ps1")
}

// Run executes the named hook, logging each output line. It returns
// ErrNotFound when the script does not exist.
func (h *HookRunner) Run(ctx context.Context, name string) error {
	scriptPath := h.ScriptPath(name)
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		logging.Debug("Hook script not found", "hook", name, "path", scriptPath)
		return ErrNotFound
	}

	start := time.Now()
	out, err := h.Runner.RunFile(ctx, scriptPath)
	for _, txt := range cleanLines(out.Stdout + "\n" + out.Stderr) {
		logging.Info(txt, "hook", name)
	}

	if err != nil {
		err = fmt.Errorf("%s script error: %w", name, err)
		logging.LogHookEvent(name, logging.StatusFailed, err, time.Since(start))
		return err
	}
	logging.LogHookEvent(name, logging.StatusCompleted, nil, time.Since(start))
	return nil
}

// cleanLines splits script output into non-empty lines without BOMs or ANSI color codes.
func cleanLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		txt := strings.TrimSpace(line)
		if txt == "" {
			continue
		}
		txt = strings.TrimPrefix(txt, "\uFEFF")
		txt = stripANSI(txt)
		if txt != "" {
			lines = append(lines, txt)
		}
	}
	return lines
}

// stripANSI drops ESC [ ... letter sequences.
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && !((s[j] >= 'A' && s[j] <= 'Z') || (s[j] >= 'a' && s[j] <= 'z')) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.TrimSpace(b.String())
}
