// pkg/config/config.go - configuration settings for winmaint.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CSP OMA-URI registry path for enterprise policy configuration
const CSPRegistryPath = `SOFTWARE\WinMaint\Config`

// Module names, used as keys in Configuration.Modules and as task names.
const (
	ModuleSystemInventory   = "SystemInventory"
	ModuleBloatwareRemoval  = "BloatwareRemoval"
	ModuleEssentialApps     = "EssentialApps"
	ModuleTelemetryDisable  = "TelemetryDisable"
	ModuleWindowsUpdates    = "WindowsUpdates"
	ModuleSecurityHardening = "SecurityHardening"
)

// KnownModules lists every module name in task-number order.
var KnownModules = []string{
	ModuleSystemInventory,
	ModuleBloatwareRemoval,
	ModuleEssentialApps,
	ModuleTelemetryDisable,
	ModuleWindowsUpdates,
	ModuleSecurityHardening,
}

// Accepted values for the pre/postflight failure actions.
const (
	FailureContinue = "continue"
	FailureAbort    = "abort"
	FailureWarn     = "warn"
)

// configFileNames are tried in order inside the config directory.
var configFileNames = []string{"Config.yaml", "Config.yml", "Config.json"}

// RetrySettings controls retries of package manager and update commands.
type RetrySettings struct {
	MaxRetries             int     `yaml:"MaxRetries"`
	InitialIntervalSeconds int     `yaml:"InitialIntervalSeconds"`
	Multiplier             float64 `yaml:"Multiplier"`
}

// RetentionSettings controls how many session log directories are kept.
type RetentionSettings struct {
	Runs       int `yaml:"Runs"`
	MaxAgeDays int `yaml:"MaxAgeDays"`
}

// Configuration holds the configurable options for winmaint.
type Configuration struct {
	LogLevel                string            `yaml:"LogLevel"`
	LogsPath                string            `yaml:"LogsPath"`
	InventoryPath           string            `yaml:"InventoryPath"`
	ReportsPath             string            `yaml:"ReportsPath"`
	HistoryPath             string            `yaml:"HistoryPath"`
	ListsPath               string            `yaml:"ListsPath"`
	Modules                 map[string]bool   `yaml:"Modules"`
	PackageManagers         []string          `yaml:"PackageManagers"`
	CommandTimeoutMinutes   int               `yaml:"CommandTimeoutMinutes"`
	Retry                   RetrySettings     `yaml:"Retry"`
	NoPreflight             bool              `yaml:"NoPreflight"`
	PreflightFailureAction  string            `yaml:"PreflightFailureAction"`  // "continue", "abort", or "warn" (default: continue)
	PostflightFailureAction string            `yaml:"PostflightFailureAction"` // "continue", "abort", or "warn" (default: continue)
	LogRetention            RetentionSettings `yaml:"LogRetention"`
	TranscriptMaxSizeMB     int               `yaml:"TranscriptMaxSizeMB"`
	DryRun                  bool              `yaml:"DryRun"`
	NonInteractive          bool              `yaml:"NonInteractive"`
	Verbose                 bool              `yaml:"Verbose"`
	Debug                   bool              `yaml:"Debug"`

	// Directory the configuration was loaded from (not exposed in YAML)
	ConfigDir string `yaml:"-"`
	// Source describes where the settings came from: file path, "csp" or "defaults"
	Source string `yaml:"-"`
}

// ValidationError collects every problem found in a configuration or list file.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	prefix := "invalid configuration"
	if e.File != "" {
		prefix = fmt.Sprintf("invalid configuration in %s", e.File)
	}
	return fmt.Sprintf("%s: %s", prefix, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) errOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// programDataDir returns %ProgramData% with the usual fallback.
func programDataDir() string {
	if pd := os.Getenv("ProgramData"); pd != "" {
		return pd
	}
	return `C:\ProgramData`
}

// DefaultBaseDir is where winmaint keeps its state when nothing else is configured.
func DefaultBaseDir() string {
	return filepath.Join(programDataDir(), "WinMaint")
}

// GetDefaultConfig provides default configuration values rooted at baseDir.
// An empty baseDir means DefaultBaseDir().
func GetDefaultConfig(baseDir string) *Configuration {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	modules := make(map[string]bool, len(KnownModules))
	for _, m := range KnownModules {
		modules[m] = true
	}
	return &Configuration{
		LogLevel:                "INFO",
		LogsPath:                filepath.Join(baseDir, "logs"),
		InventoryPath:           filepath.Join(baseDir, "inventory"),
		ReportsPath:             filepath.Join(baseDir, "reports"),
		HistoryPath:             filepath.Join(baseDir, "history.db"),
		ListsPath:               filepath.Join(baseDir, "lists"),
		Modules:                 modules,
		PackageManagers:         []string{"winget", "choco", "appx"},
		CommandTimeoutMinutes:   30,
		Retry:                   RetrySettings{MaxRetries: 3, InitialIntervalSeconds: 5, Multiplier: 2},
		PreflightFailureAction:  FailureContinue,
		PostflightFailureAction: FailureContinue,
		LogRetention:            RetentionSettings{Runs: 20, MaxAgeDays: 30},
		TranscriptMaxSizeMB:     10,
		ConfigDir:               baseDir,
		Source:                  "defaults",
	}
}

// LoadConfig loads the configuration from the first config file found in dir.
// If no file exists, it falls back to CSP OMA-URI registry settings and then to
// the defaults.
func LoadConfig(dir string) (*Configuration, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking configuration file %s: %w", path, err)
		}
	}

	log.Printf("No configuration file in %s, trying CSP OMA-URI registry settings...", dir)
	cfg, cspErr := LoadConfigFromCSP(dir)
	if cspErr == nil {
		log.Printf("Loaded configuration from CSP OMA-URI registry settings")
		return cfg, nil
	}
	log.Printf("CSP registry settings not available: %v; using defaults", cspErr)

	cfg = GetDefaultConfig(dir)
	return cfg, nil
}

// LoadFile loads a configuration from a YAML or JSON file. Values not present
// in the file keep their defaults, relative paths are resolved against the
// file's directory and unknown keys are rejected.
func LoadFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg := GetDefaultConfig(dir)
	defaultModules := cfg.Modules
	cfg.Modules = nil

	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	mergeModules(cfg, defaultModules)
	cfg.resolvePaths(dir)
	cfg.ConfigDir = dir
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			vErr.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// decodeStrict decodes YAML (and therefore JSON) rejecting unknown fields.
// An empty document leaves out untouched.
func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// mergeModules fills module toggles missing from the file with their defaults.
func mergeModules(cfg *Configuration, defaults map[string]bool) {
	if cfg.Modules == nil {
		cfg.Modules = make(map[string]bool, len(defaults))
	}
	for name, enabled := range defaults {
		if _, ok := cfg.Modules[name]; !ok {
			cfg.Modules[name] = enabled
		}
	}
}

func (c *Configuration) resolvePaths(dir string) {
	for _, p := range []*string{&c.LogsPath, &c.InventoryPath, &c.ReportsPath, &c.HistoryPath, &c.ListsPath} {
		if *p != "" && !filepath.IsAbs(*p) && !isWindowsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// isWindowsAbs reports drive-letter and UNC paths as absolute on every OS so a
// config written for Windows is not rewritten when tested elsewhere.
func isWindowsAbs(p string) bool {
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}

// Validate checks field values and returns a *ValidationError listing every problem.
func (c *Configuration) Validate() error {
	vErr := &ValidationError{}

	switch strings.ToUpper(c.LogLevel) {
	case "ERROR", "WARN", "INFO", "DEBUG":
	default:
		vErr.add("LogLevel %q must be one of ERROR, WARN, INFO, DEBUG", c.LogLevel)
	}

	known := make(map[string]bool, len(KnownModules))
	for _, m := range KnownModules {
		known[m] = true
	}
	for name := range c.Modules {
		if !known[name] {
			vErr.add("unknown module %q in Modules", name)
		}
	}

	seen := make(map[string]bool)
	for _, pm := range c.PackageManagers {
		lower := strings.ToLower(pm)
		switch lower {
		case "winget", "choco", "appx":
		default:
			vErr.add("unknown package manager %q (expected winget, choco or appx)", pm)
		}
		if seen[lower] {
			vErr.add("package manager %q listed twice", pm)
		}
		seen[lower] = true
	}

	if c.CommandTimeoutMinutes < 1 {
		vErr.add("CommandTimeoutMinutes must be at least 1, got %d", c.CommandTimeoutMinutes)
	}
	if c.Retry.MaxRetries < 1 {
		vErr.add("Retry.MaxRetries must be at least 1, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.Multiplier < 1 {
		vErr.add("Retry.Multiplier must be at least 1, got %g", c.Retry.Multiplier)
	}
	for field, action := range map[string]string{
		"PreflightFailureAction":  c.PreflightFailureAction,
		"PostflightFailureAction": c.PostflightFailureAction,
	} {
		switch action {
		case FailureContinue, FailureAbort, FailureWarn:
		default:
			vErr.add("%s %q must be continue, abort or warn", field, action)
		}
	}
	if c.LogRetention.Runs < 1 {
		vErr.add("LogRetention.Runs must be at least 1, got %d", c.LogRetention.Runs)
	}
	for field, p := range map[string]string{
		"LogsPath":      c.LogsPath,
		"InventoryPath": c.InventoryPath,
		"ReportsPath":   c.ReportsPath,
		"HistoryPath":   c.HistoryPath,
		"ListsPath":     c.ListsPath,
	} {
		if strings.TrimSpace(p) == "" {
			vErr.add("%s must not be empty", field)
		}
	}

	return vErr.errOrNil()
}

// ModuleEnabled reports whether a module is switched on. Modules absent from
// the map are enabled.
func (c *Configuration) ModuleEnabled(name string) bool {
	enabled, ok := c.Modules[name]
	return !ok || enabled
}

// EnsureDirs creates every state directory the configuration points at.
func (c *Configuration) EnsureDirs() error {
	for _, path := range []string{c.LogsPath, c.InventoryPath, c.ReportsPath, filepath.Dir(c.HistoryPath)} {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %v", path, err)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Configuration, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
