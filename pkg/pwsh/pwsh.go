// pkg/pwsh/pwsh.go - runs PowerShell snippets through the command runner and decodes their JSON output.

package pwsh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

// Shell runs PowerShell commands.
type Shell struct {
	Runner execx.Runner
	Exe    string
}

// New returns a Shell using the first PowerShell found on PATH.
func New(r execx.Runner) *Shell {
	return &Shell{Runner: r, Exe: FindPowerShell()}
}

// FindPowerShell prefers PowerShell 7 and falls back to Windows PowerShell.
func FindPowerShell() string {
	for _, name := range []string{"pwsh.exe", "pwsh", "powershell.exe"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return "powershell.exe"
}

func (s *Shell) baseArgs() []string {
	return []string{"-NoLogo", "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass"}
}

// Run executes script and returns its trimmed standard output.
func (s *Shell) Run(ctx context.Context, script string) (string, error) {
	args := append(s.baseArgs(), "-Command", script)
	out, err := s.Runner.Run(ctx, s.Exe, args...)
	if err != nil {
		return strings.TrimSpace(out.Stdout), err
	}
	return strings.TrimSpace(out.Stdout), nil
}

// RunFile executes the script file at path and returns the raw output.
func (s *Shell) RunFile(ctx context.Context, path string) (execx.Output, error) {
	args := append(s.baseArgs(), "-File", path)
	return s.Runner.Run(ctx, s.Exe, args...)
}

// RunJSON pipes script through ConvertTo-Json and decodes the result into out,
// which must point to a slice. A single object is decoded as a one element slice
// and empty output leaves out untouched.
func (s *Shell) RunJSON(ctx context.Context, script string, out interface{}) error {
	text, err := s.Run(ctx, fmt.Sprintf("%s | ConvertTo-Json -Depth 4 -Compress", script))
	if err != nil {
		return err
	}
	return DecodeJSONList([]byte(text), out)
}

// DecodeJSONList decodes ConvertTo-Json output into a slice.
func DecodeJSONList(data []byte, out interface{}) error {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return nil
	}
	if data[0] == '{' {
		data = append(append([]byte{'['}, data...), ']')
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode PowerShell output: %w", err)
	}
	return nil
}

// Quote returns s as a single quoted PowerShell string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
