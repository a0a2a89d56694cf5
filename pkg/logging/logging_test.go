package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestLogger(t *testing.T, level LogLevel) string {
	t.Helper()
	base := t.TempDir()
	require.NoError(t, InitWithConfig(LoggerConfig{
		BaseDir: base,
		RunType: "dryrun",
		Level:   level,
	}))
	t.Cleanup(CloseLogger)
	return base
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		" error ": LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSessionDirectoryLayout(t *testing.T) {
	base := initTestLogger(t, LevelInfo)

	dir := GetCurrentLogDir()
	require.NotEmpty(t, dir)
	assert.Equal(t, base, filepath.Dir(dir))
	_, err := time.Parse(sessionDirLayout, filepath.Base(dir))
	require.NoError(t, err)

	for _, name := range []string{TextLogFile, EventsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NotEmpty(t, GetSessionID())
}

func TestTextLogLevelsAndKeyValues(t *testing.T) {
	base := initTestLogger(t, LevelInfo)

	Info("Loaded config", "path", `C:\cfg`, "modules", 6)
	Debug("hidden detail")
	Error("Something broke", "error", errors.New("boom"))
	SetLevel(LevelDebug)
	Debug("visible detail")

	data, err := os.ReadFile(filepath.Join(GetCurrentLogDir(), TextLogFile))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `INFO  Loaded config path=C:\cfg modules=6`)
	assert.NotContains(t, text, "hidden detail")
	assert.Contains(t, text, "visible detail")
	assert.Contains(t, text, "----------------------------------------\n")
	assert.Contains(t, text, "error=boom")

	transcript, err := os.ReadFile(filepath.Join(base, TranscriptLog))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "Loaded config")
}

func TestFormatKeyValuesMultiline(t *testing.T) {
	inline := formatKeyValues([]interface{}{"a", 1, "b"})
	assert.Equal(t, " a=1 b=(missing)", inline)

	multi := formatKeyValues([]interface{}{"a", 1, "b", 2, "c", 3, "d", 4, "e", 5})
	assert.Equal(t, 5, strings.Count(multi, "\n"))
	assert.Contains(t, multi, "e: 5")
}

func TestEventsAreJSONLines(t *testing.T) {
	initTestLogger(t, LevelInfo)

	require.NoError(t, StartSession(map[string]interface{}{"tasks": "2,4"}))
	LogModuleStart("BloatwareRemoval", 2, true)
	LogItemAction("BloatwareRemoval", "Microsoft.BingNews", "uninstall", StatusWouldApply, nil)
	LogItemAction("BloatwareRemoval", "Contoso.App", "uninstall", StatusCompleted, errors.New("exit 1"))
	LogModuleComplete("BloatwareRemoval", 2, 1, 1, 3*time.Second)
	require.NoError(t, Event(EventSystem, "custom", StatusCompleted, "done", WithContext("k", "v")))

	dir := GetCurrentLogDir()
	data, err := os.ReadFile(filepath.Join(dir, EventsFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5, "one compact JSON object per line")

	events, err := ReadEvents(filepath.Join(dir, EventsFile))
	require.NoError(t, err)
	require.Len(t, events, 5)

	assert.Equal(t, EventModule, events[0].EventType)
	assert.Equal(t, StatusStarted, events[0].Status)
	assert.Equal(t, true, events[0].Context["dry_run"])

	assert.Equal(t, "Microsoft.BingNews", events[1].Item)
	assert.Equal(t, StatusWouldApply, events[1].Status)

	assert.Equal(t, StatusFailed, events[2].Status, "an error overrides the status")
	assert.Equal(t, "ERROR", events[2].Level)
	assert.Equal(t, "exit 1", events[2].Error)

	require.NotNil(t, events[3].Duration)
	assert.Equal(t, 3*time.Second, *events[3].Duration)
	assert.Equal(t, "v", events[4].Context["k"])

	for _, e := range events {
		assert.Equal(t, GetSessionID(), e.SessionID)
	}

	failed := FilterEvents(events, LogEvent{Status: StatusFailed})
	require.Len(t, failed, 1)
	assert.Equal(t, "Contoso.App", failed[0].Item)
}

func TestEndSessionWritesSummary(t *testing.T) {
	initTestLogger(t, LevelInfo)

	require.Error(t, EndSession("completed", SessionSummary{}), "no session started")
	require.NoError(t, StartSession(nil))

	sessionPath := filepath.Join(GetCurrentLogDir(), SessionFile)
	s, err := ReadSession(sessionPath)
	require.NoError(t, err)
	assert.Equal(t, "running", s.Status)
	assert.Equal(t, "dryrun", s.RunType)
	assert.Nil(t, s.EndTime)

	require.NoError(t, EndSession("completed", SessionSummary{TotalModules: 2, Succeeded: 1, Failed: 1, ModulesRun: []string{"A", "B"}}))
	s, err = ReadSession(sessionPath)
	require.NoError(t, err)
	assert.Equal(t, "completed", s.Status)
	require.NotNil(t, s.EndTime)
	assert.Equal(t, 2, s.Summary.TotalModules)
	assert.Equal(t, []string{"A", "B"}, s.Summary.ModulesRun)
}

func TestReadEventsSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), EventsFile)
	content := `{"event_id":"1","action":"a","status":"completed"}
not json
{"event_id":"2","action":"b","status":"failed"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[1].EventID)
}

func TestPerformCleanupRetention(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	names := []string{
		now.AddDate(0, 0, -40).Format(sessionDirLayout),
		now.AddDate(0, 0, -3).Format(sessionDirLayout),
		now.AddDate(0, 0, -2).Format(sessionDirLayout),
		now.AddDate(0, 0, -1).Format(sessionDirLayout),
	}
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(base, n), 0755))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(base, "not-a-session"), 0755))

	require.NoError(t, performCleanup(base, RetentionPolicy{Runs: 3, MaxAgeDays: 30}, now))

	dirs, err := SessionDirs(base)
	require.NoError(t, err)
	assert.Equal(t, names[2:], dirs, "keeps Runs-1 newest so the new session makes Runs")
	assert.DirExists(t, filepath.Join(base, "not-a-session"))
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	c := New(false)
	c.SetOutput(&buf)

	c.Success("installed %d", 3)
	c.Debug("quiet")
	assert.Contains(t, buf.String(), "installed 3")
	assert.NotContains(t, buf.String(), "quiet")
	assert.NotContains(t, buf.String(), "\033[", "colors are off after SetOutput")

	v := New(true)
	v.SetOutput(&buf)
	v.Debug("loud")
	assert.Contains(t, buf.String(), "loud")
}
