package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig(t.TempDir())
	require.NoError(t, cfg.Validate())
	for _, m := range KnownModules {
		assert.True(t, cfg.ModuleEnabled(m), m)
	}
	assert.Equal(t, "defaults", cfg.Source)
}

func TestLoadFileYAMLKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Config.yaml", `
LogLevel: DEBUG
LogsPath: logs-here
Modules:
  WindowsUpdates: false
Retry:
  MaxRetries: 5
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "logs-here"), cfg.LogsPath, "relative paths resolve against the config dir")
	assert.Equal(t, filepath.Join(dir, "inventory"), cfg.InventoryPath)
	assert.False(t, cfg.ModuleEnabled(ModuleWindowsUpdates))
	assert.True(t, cfg.ModuleEnabled(ModuleBloatwareRemoval), "modules missing from the file keep their default")
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 5, cfg.Retry.InitialIntervalSeconds, "untouched nested fields keep their default")
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, dir, cfg.ConfigDir)
}

func TestLoadFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Config.json", `{
  "LogLevel": "WARN",
  "PackageManagers": ["choco"],
  "LogsPath": "C:\\ProgramData\\WinMaint\\logs",
  "DryRun": true
}`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, []string{"choco"}, cfg.PackageManagers)
	assert.Equal(t, `C:\ProgramData\WinMaint\logs`, cfg.LogsPath, "windows absolute paths are left alone")
	assert.True(t, cfg.DryRun)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Config.yaml", "LogLevel: INFO\nBogusSetting: 1\n")
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BogusSetting")
}

func TestLoadFileValidation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Config.yaml", `
LogLevel: LOUD
PackageManagers: [winget, scoop, winget]
Modules:
  Defrag: true
PreflightFailureAction: explode
`)
	_, err := LoadFile(path)
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, path, vErr.File)
	assert.Len(t, vErr.Problems, 5)
}

func TestLoadConfigPrefersFileThenDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.NotEqual(t, "", cfg.Source)
	assert.Equal(t, filepath.Join(dir, "lists"), cfg.ListsPath)

	writeFile(t, dir, "Config.json", `{"LogLevel": "ERROR"}`)
	cfg, err = LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.LogLevel)
}

func TestEmptyConfigFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Config.yaml", "")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := GetDefaultConfig(dir)
	cfg.LogLevel = "WARN"
	path := filepath.Join(dir, "out", "Config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", loaded.LogLevel)
	assert.Equal(t, cfg.LogsPath, loaded.LogsPath)
}

func TestEnsureDirs(t *testing.T) {
	cfg := GetDefaultConfig(t.TempDir())
	require.NoError(t, cfg.EnsureDirs())
	for _, p := range []string{cfg.LogsPath, cfg.InventoryPath, cfg.ReportsPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDiscoverConfigDir(t *testing.T) {
	dir, rule := DiscoverConfigDir("/some/where")
	assert.Equal(t, filepath.Clean("/some/where"), dir)
	assert.Equal(t, "flag", rule)

	envDir := t.TempDir()
	t.Setenv(EnvConfigDir, envDir)
	dir, rule = DiscoverConfigDir("")
	assert.Equal(t, envDir, dir)
	assert.Equal(t, "env", rule)
}
