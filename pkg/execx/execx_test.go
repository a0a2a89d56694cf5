package execx

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Name: "winget", ExitCode: 3, Stderr: "first\nsecond"}
	assert.Equal(t, "winget exited with code 3 | stderr: first", err.Error())

	startErr := &CommandError{Name: "choco", ExitCode: -1, Err: errors.New("not found")}
	assert.Equal(t, "choco failed: not found", startErr.Error())

	assert.Equal(t, 3, ExitCode(err))
	assert.Equal(t, -1, ExitCode(errors.New("plain")))
}

func TestFakeMatchingAndOnce(t *testing.T) {
	f := &Fake{}
	f.Once("winget install", Output{ExitCode: 1}, nil)
	f.On("winget install", Output{Stdout: "ok"}, nil)

	ctx := context.Background()
	_, err := f.Run(ctx, "winget", "install", "--id", "Git.Git")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	out, err := f.Run(ctx, "winget", "install", "--id", "Git.Git")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Stdout)

	out, err = f.Run(ctx, "choco", "list")
	require.NoError(t, err)
	assert.Empty(t, out.Stdout)

	assert.Len(t, f.CallsMatching("winget install"), 2)
	assert.Equal(t, "choco list", f.Calls[2].CommandLine())
}

func TestFakeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Fake{}).Run(ctx, "sc.exe", "stop", "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecRunnerExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	r := NewExecRunner(5 * time.Second)
	out, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo oops >&2; exit 4")
	require.Error(t, err)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, 4, out.ExitCode)
	assert.Equal(t, 4, ExitCode(err))
	assert.Contains(t, err.Error(), "stderr: oops")

	out, err = r.Run(context.Background(), "sh", "-c", "echo fine")
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
}

func TestExecRunnerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	r := NewExecRunner(50 * time.Millisecond)
	_, err := r.Run(context.Background(), "sh", "-c", "exec sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, ExitCode(err))
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := NewExecRunner(0).Run(context.Background(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.Equal(t, -1, ExitCode(err))
}
