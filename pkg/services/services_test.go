package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

func TestNormalizeStartMode(t *testing.T) {
	cases := map[string]string{
		"Auto":     StartAutomatic,
		"demand":   StartManual,
		"Manual":   StartManual,
		"Disabled": StartDisabled,
		"Boot":     "boot",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStartMode(in), in)
	}
}

func TestSCControllerQuery(t *testing.T) {
	c := &SCController{Runner: &execx.Fake{}, lookup: func(name string) (*win32Service, error) {
		if name == "DiagTrack" {
			return &win32Service{Name: "DiagTrack", DisplayName: "Connected User Experiences", StartMode: "Auto", State: "Running"}, nil
		}
		return nil, nil
	}}

	svc, err := c.Query(context.Background(), "DiagTrack")
	require.NoError(t, err)
	assert.Equal(t, StartAutomatic, svc.StartMode)
	assert.True(t, svc.Running())

	_, err = c.Query(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSCControllerCommands(t *testing.T) {
	f := &execx.Fake{}
	f.On("sc.exe stop AlreadyStopped", execx.Output{ExitCode: scServiceNotActive}, nil)
	f.On("sc.exe stop Broken", execx.Output{ExitCode: 5}, nil)
	c := NewController(f)
	ctx := context.Background()

	require.NoError(t, c.SetStartMode(ctx, "DiagTrack", "disabled"))
	require.NoError(t, c.SetStartMode(ctx, "DiagTrack", "manual"))
	assert.Error(t, c.SetStartMode(ctx, "DiagTrack", "sometimes"))
	assert.Equal(t, "sc.exe config DiagTrack start= disabled", f.Calls[0].CommandLine())
	assert.Equal(t, "sc.exe config DiagTrack start= demand", f.Calls[1].CommandLine())

	require.NoError(t, c.Stop(ctx, "AlreadyStopped"))
	err := c.Stop(ctx, "Broken")
	require.Error(t, err)
	assert.Equal(t, 5, execx.ExitCode(err))
}

func TestMemoryController(t *testing.T) {
	m := NewMemoryController(Service{Name: "DiagTrack", StartMode: StartAutomatic, State: "running"})
	ctx := context.Background()

	require.NoError(t, m.SetStartMode(ctx, "diagtrack", "Disabled"))
	require.NoError(t, m.Stop(ctx, "DiagTrack"))
	svc, err := m.Query(ctx, "DIAGTRACK")
	require.NoError(t, err)
	assert.Equal(t, StartDisabled, svc.StartMode)
	assert.False(t, svc.Running())

	assert.ErrorIs(t, m.Stop(ctx, "missing"), ErrNotFound)

	m.Fail["DiagTrack"] = errors.New("access denied")
	assert.EqualError(t, m.Stop(ctx, "DiagTrack"), "access denied")
	assert.Equal(t, []string{"DiagTrack"}, m.Names())
}
