package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

type fakeFileRunner struct {
	out   execx.Output
	err   error
	paths []string
}

func (f *fakeFileRunner) RunFile(ctx context.Context, path string) (execx.Output, error) {
	f.paths = append(f.paths, path)
	return f.out, f.err
}

func TestHookRunnerMissingScript(t *testing.T) {
	r := &fakeFileRunner{}
	h := NewHookRunner(t.TempDir(), r)
	assert.ErrorIs(t, h.Run(context.Background(), Preflight), ErrNotFound)
	assert.Empty(t, r.paths)
}

func TestHookRunnerRunsScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "postflight.ps1"), []byte("Write-Output hi"), 0644))
	r := &fakeFileRunner{out: execx.Output{Stdout: "\uFEFFhi\r\n\x1b[32mgreen\x1b[0m\r\n"}}
	h := NewHookRunner(dir, r)

	require.NoError(t, h.Run(context.Background(), Postflight))
	assert.Equal(t, []string{filepath.Join(dir, "postflight.ps1")}, r.paths)
}

func TestHookRunnerScriptFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "preflight.ps1"), []byte("exit 1"), 0644))
	h := NewHookRunner(dir, &fakeFileRunner{err: errors.New("exit status 1")})

	err := h.Run(context.Background(), Preflight)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight script error")
}

func TestCleanLines(t *testing.T) {
	assert.Equal(t, []string{"hi", "green"}, cleanLines("\uFEFFhi\r\n\n\x1b[32mgreen\x1b[0m\r\n\x1b[0m"))
}
