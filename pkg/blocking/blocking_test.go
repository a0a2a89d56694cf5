package blocking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunningApps(t *testing.T) {
	c := &Checker{Processes: func() ([]Process, error) {
		return []Process{
			{Name: "Teams.exe", Exe: `C:\Users\me\AppData\Local\Microsoft\Teams\current\Teams.exe`},
			{Name: "OneDrive.exe", Exe: `C:\Program Files\Microsoft OneDrive\OneDrive.exe`},
		}, nil
	}}

	running := c.RunningApps([]string{
		"teams",
		"OneDrive.exe",
		`C:\Program Files\Microsoft OneDrive\OneDrive.exe`,
		"skype",
		`C:\Other\OneDrive.exe`,
	})
	assert.Equal(t, []string{"teams", "OneDrive.exe", `C:\Program Files\Microsoft OneDrive\OneDrive.exe`}, running)
	assert.Nil(t, c.RunningApps(nil))
}

func TestRunningAppsProcessListFailure(t *testing.T) {
	c := &Checker{Processes: func() ([]Process, error) { return nil, errors.New("denied") }}
	assert.Empty(t, c.RunningApps([]string{"teams"}))
}
