// pkg/config/lists.go - JSON target lists consumed by the maintenance modules.

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/winmaint/pkg/regedit"
)

// List file names inside ListsPath.
const (
	BloatwareListFile = "bloatware.json"
	EssentialListFile = "essential-apps.json"
	TelemetryListFile = "telemetry.json"
	SecurityListFile  = "security.json"
	UpdatesListFile   = "updates.json"
)

// ScalarString accepts any YAML/JSON scalar (string, number, bool) as a string,
// so registry data can be written as 0 or "0".
type ScalarString string

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (s *ScalarString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	*s = ScalarString(node.Value)
	return nil
}

// PackageRef names a package in a bloatware or essential-apps list.
type PackageRef struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name,omitempty" json:"name,omitempty"`
	Source       string   `yaml:"source,omitempty" json:"source,omitempty"` // winget, choco, appx or empty for any
	MinVersion   string   `yaml:"min_version,omitempty" json:"min_version,omitempty"`
	BlockingApps []string `yaml:"blocking_apps,omitempty" json:"blocking_apps,omitempty"`
}

// DisplayName prefers Name over ID.
func (p PackageRef) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// RegistrySetting is a desired registry value.
type RegistrySetting struct {
	Path        string       `yaml:"path" json:"path"`
	Name        string       `yaml:"name" json:"name"`
	Type        string       `yaml:"type" json:"type"`
	Value       ScalarString `yaml:"value" json:"value"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
}

// ID is the stable identifier of the setting: full key path plus value name.
func (r RegistrySetting) ID() string {
	return strings.TrimRight(r.Path, `\`) + `\` + r.Name
}

// ServiceSetting is a desired Windows service start mode.
type ServiceSetting struct {
	Name      string `yaml:"name" json:"name"`
	StartMode string `yaml:"start_mode" json:"start_mode"` // disabled, manual, automatic
	Stop      bool   `yaml:"stop,omitempty" json:"stop,omitempty"`
}

// BloatwareList is the content of bloatware.json.
type BloatwareList struct {
	Packages []PackageRef `yaml:"packages" json:"packages"`
}

// EssentialAppsList is the content of essential-apps.json.
type EssentialAppsList struct {
	Packages []PackageRef `yaml:"packages" json:"packages"`
}

// TelemetryList is the content of telemetry.json.
type TelemetryList struct {
	Registry       []RegistrySetting `yaml:"registry" json:"registry"`
	Services       []ServiceSetting  `yaml:"services" json:"services"`
	ScheduledTasks []string          `yaml:"scheduled_tasks" json:"scheduled_tasks"`
}

// SecurityList is the content of security.json.
type SecurityList struct {
	Registry         []RegistrySetting `yaml:"registry" json:"registry"`
	FirewallProfiles []string          `yaml:"firewall_profiles" json:"firewall_profiles"`
}

// UpdatesList is the content of updates.json.
type UpdatesList struct {
	ExcludeKBs     []string `yaml:"exclude_kbs" json:"exclude_kbs"`
	ExcludeTitles  []string `yaml:"exclude_titles" json:"exclude_titles"`
	IncludeDrivers bool     `yaml:"include_drivers" json:"include_drivers"`
}

// Lists groups every target list.
type Lists struct {
	Dir       string
	Files     []string // list files that were found and loaded
	Bloatware BloatwareList
	Essential EssentialAppsList
	Telemetry TelemetryList
	Security  SecurityList
	Updates   UpdatesList
}

// LoadLists reads every list file from dir. Missing files yield empty lists;
// malformed or invalid files are errors.
func LoadLists(dir string) (*Lists, error) {
	lists := &Lists{Dir: dir}
	files := []struct {
		name     string
		out      interface{}
		validate func(*ValidationError)
	}{
		{BloatwareListFile, &lists.Bloatware, func(v *ValidationError) { validatePackages(v, lists.Bloatware.Packages, false) }},
		{EssentialListFile, &lists.Essential, func(v *ValidationError) { validatePackages(v, lists.Essential.Packages, true) }},
		{TelemetryListFile, &lists.Telemetry, func(v *ValidationError) { validateTelemetry(v, &lists.Telemetry) }},
		{SecurityListFile, &lists.Security, func(v *ValidationError) { validateSecurity(v, &lists.Security) }},
		{UpdatesListFile, &lists.Updates, func(v *ValidationError) { validateUpdates(v, &lists.Updates) }},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Printf("List file %s not found, using an empty list", path)
				continue
			}
			return nil, fmt.Errorf("failed to read list file %q: %w", path, err)
		}
		if err := decodeStrict(data, f.out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		vErr := &ValidationError{File: path}
		f.validate(vErr)
		if err := vErr.errOrNil(); err != nil {
			return nil, err
		}
		lists.Files = append(lists.Files, path)
	}
	return lists, nil
}

func validatePackages(v *ValidationError, pkgs []PackageRef, installable bool) {
	seen := make(map[string]bool)
	for i, p := range pkgs {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			v.add("packages[%d]: id is required", i)
			continue
		}
		key := strings.ToLower(p.Source + "|" + id)
		if seen[key] {
			v.add("packages[%d]: duplicate id %q", i, id)
		}
		seen[key] = true
		switch strings.ToLower(p.Source) {
		case "", "winget", "choco", "appx":
		default:
			v.add("packages[%d]: unknown source %q", i, p.Source)
		}
		if installable {
			if strings.ContainsAny(id, "*?") {
				v.add("packages[%d]: wildcards are not allowed in installable id %q", i, id)
			}
			if strings.EqualFold(p.Source, "appx") {
				v.add("packages[%d]: appx packages cannot be installed", i)
			}
		}
	}
}

func validateRegistry(v *ValidationError, settings []RegistrySetting) {
	seen := make(map[string]bool)
	for i, r := range settings {
		if _, _, err := regedit.ParsePath(r.Path); err != nil {
			v.add("registry[%d]: %v", i, err)
		}
		if r.Name == "" {
			v.add("registry[%d]: name is required", i)
		}
		t, err := regedit.ParseType(r.Type)
		if err != nil {
			v.add("registry[%d]: %v", i, err)
		} else if _, err := regedit.NewValue(t, string(r.Value)); err != nil {
			v.add("registry[%d]: %v", i, err)
		}
		key := strings.ToLower(r.ID())
		if seen[key] {
			v.add("registry[%d]: duplicate setting %s", i, r.ID())
		}
		seen[key] = true
	}
}

func validateTelemetry(v *ValidationError, t *TelemetryList) {
	validateRegistry(v, t.Registry)
	seen := make(map[string]bool)
	for i, s := range t.Services {
		if s.Name == "" {
			v.add("services[%d]: name is required", i)
		}
		if strings.ContainsAny(s.Name, `'"\/`) {
			v.add("services[%d]: name %q must not contain quotes or slashes", i, s.Name)
		}
		switch strings.ToLower(s.StartMode) {
		case "disabled", "manual", "automatic":
		default:
			v.add("services[%d]: start_mode %q must be disabled, manual or automatic", i, s.StartMode)
		}
		if seen[strings.ToLower(s.Name)] {
			v.add("services[%d]: duplicate service %q", i, s.Name)
		}
		seen[strings.ToLower(s.Name)] = true
	}
	seen = make(map[string]bool)
	for i, task := range t.ScheduledTasks {
		if !strings.HasPrefix(task, `\`) {
			v.add("scheduled_tasks[%d]: %q must be a full task path starting with \\", i, task)
		}
		if seen[strings.ToLower(task)] {
			v.add("scheduled_tasks[%d]: duplicate task %q", i, task)
		}
		seen[strings.ToLower(task)] = true
	}
}

func validateSecurity(v *ValidationError, s *SecurityList) {
	validateRegistry(v, s.Registry)
	for i, p := range s.FirewallProfiles {
		switch strings.ToLower(p) {
		case "domain", "private", "public":
		default:
			v.add("firewall_profiles[%d]: unknown profile %q", i, p)
		}
	}
}

func validateUpdates(v *ValidationError, u *UpdatesList) {
	for i, kb := range u.ExcludeKBs {
		upper := strings.ToUpper(strings.TrimSpace(kb))
		if !strings.HasPrefix(upper, "KB") || len(upper) < 3 {
			v.add("exclude_kbs[%d]: %q is not a KB article id", i, kb)
		}
	}
}

// splitNonEmpty trims every element and drops empty ones.
func splitNonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, val := range vals {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
