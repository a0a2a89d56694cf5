// pkg/execx/execx.go - the command-runner boundary every external tool call goes through.

package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/windowsadmins/winmaint/pkg/logging"
)

// Output is what a finished command produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs external commands. Implementations return a *CommandError
// when the command could not start, timed out, or exited non-zero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// CommandError describes a failed command.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int // -1 when the process never produced an exit code
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Name)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += " | stderr: " + firstLine(s)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error returned by a Runner.
// It returns -1 when err carries none.
func ExitCode(err error) int {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}
	return -1
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// ExecRunner runs commands with os/exec, hiding console windows on Windows.
type ExecRunner struct {
	Timeout time.Duration // zero means no per-command timeout
}

// NewExecRunner returns an ExecRunner with the given per-command timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes name with args and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	// Children that inherit the output pipes must not hold Run open past cancellation
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	logging.Debug("Running command", "command", name, "args", strings.Join(args, " "))
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		logging.Debug("Command finished", "command", name, "duration", time.Since(start).Round(time.Millisecond))
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			logging.Error("Command timed out", "command", name, "timeout", r.Timeout)
		}
		return out, &CommandError{Name: name, Args: args, ExitCode: -1, Stderr: out.Stderr, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, &CommandError{Name: name, Args: args, ExitCode: out.ExitCode, Stderr: out.Stderr, Err: err}
	}

	out.ExitCode = -1
	return out, &CommandError{Name: name, Args: args, ExitCode: -1, Stderr: out.Stderr, Err: err}
}
