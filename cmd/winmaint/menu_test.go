package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/tasks"
)

var valid = []int{1, 2, 3, 4, 5, 6}

func TestSelectTasks(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("9\n2,4-5\n"), &out)
	sel, ok, err := p.selectTasks(tasks.All(), valid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{2, 4, 5}, sel)
	assert.Contains(t, out.String(), "Invalid selection")
	assert.Contains(t, out.String(), "BloatwareRemoval")
}

func TestSelectTasksDefaultsAndQuit(t *testing.T) {
	p := newPrompter(strings.NewReader("\n"), &bytes.Buffer{})
	sel, ok, err := p.selectTasks(tasks.All(), valid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, valid, sel)

	p = newPrompter(strings.NewReader("q\n"), &bytes.Buffer{})
	_, ok, err = p.selectTasks(tasks.All(), valid)
	require.NoError(t, err)
	assert.False(t, ok)

	p = newPrompter(strings.NewReader(""), &bytes.Buffer{})
	_, _, err = p.selectTasks(tasks.All(), valid)
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	task, _ := tasks.ByNumber(2)
	for in, want := range map[string]bool{"\n": true, "y\n": true, "YES\n": true, "n\n": false, "": false, "y": true} {
		p := newPrompter(strings.NewReader(in), &bytes.Buffer{})
		assert.Equal(t, want, p.confirm(task), "%q", in)
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, exitOK, exitCodeFor(false))
	assert.Equal(t, exitModuleFailed, exitCodeFor(true))
}
