package schtasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

const consolidator = `\Microsoft\Windows\Customer Experience Improvement Program\Consolidator`

func TestQueryParsesCSV(t *testing.T) {
	f := &execx.Fake{}
	f.On("/Query", execx.Output{Stdout: "\r\n\"" + consolidator + "\",\"10/15/2026 12:00:00 AM\",\"Ready\"\r\n"}, nil)
	s := New(f)

	task, err := s.Query(context.Background(), consolidator)
	require.NoError(t, err)
	assert.Equal(t, consolidator, task.Path)
	assert.Equal(t, "Ready", task.Status)
	assert.True(t, task.Enabled())

	assert.Equal(t, []string{"/Query", "/TN", consolidator, "/FO", "CSV", "/NH"}, f.Calls[0].Args)
}

func TestQueryNotFound(t *testing.T) {
	f := &execx.Fake{}
	f.On("/Query", execx.Output{ExitCode: 1, Stderr: "ERROR: The system cannot find the file specified.\r\n"}, nil)
	_, err := New(f).Query(context.Background(), `\Missing`)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDisable(t *testing.T) {
	f := &execx.Fake{}
	require.NoError(t, New(f).Disable(context.Background(), consolidator))
	assert.Equal(t, "schtasks.exe /Change /TN "+consolidator+" /Disable", f.Calls[0].CommandLine())

	f.On("/Change", execx.Output{ExitCode: 1, Stderr: "ERROR: Access is denied."}, nil)
	err := New(f).Disable(context.Background(), consolidator)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryScheduler(t *testing.T) {
	m := NewMemoryScheduler(Task{Path: consolidator, Status: "Ready"})
	ctx := context.Background()
	require.NoError(t, m.Disable(ctx, consolidator))
	task, err := m.Query(ctx, consolidator)
	require.NoError(t, err)
	assert.False(t, task.Enabled())
	assert.ErrorIs(t, m.Disable(ctx, `\Nope`), ErrNotFound)
}
