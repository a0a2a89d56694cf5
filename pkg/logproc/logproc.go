// pkg/logproc/logproc.go - turns a session's events and module results into a run summary

package logproc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/result"
)

// Summary file names written to the reports directory.
const (
	SummaryJSON = "summary.json"
	SummaryYAML = "summary.yaml"
)

// ItemResult is the last recorded action on one diff item.
type ItemResult struct {
	Item      string        `json:"item" yaml:"item"`
	Action    string        `json:"action" yaml:"action"`
	Status    string        `json:"status" yaml:"status"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
}

// ModuleSummary is a module result plus its item actions.
type ModuleSummary struct {
	result.ModuleResult `yaml:",inline"`
	Items               []ItemResult `json:"items,omitempty" yaml:"items,omitempty"`
}

// HookResult is one pre or postflight run.
type HookResult struct {
	Hook     string        `json:"hook" yaml:"hook"`
	Status   string        `json:"status" yaml:"status"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Summary describes one run.
type Summary struct {
	SessionID    string          `json:"session_id" yaml:"session_id"`
	Host         string          `json:"host" yaml:"host"`
	RunType      string          `json:"run_type" yaml:"run_type"`
	Status       string          `json:"status" yaml:"status"`
	DryRun       bool            `json:"dry_run" yaml:"dry_run"`
	Interrupted  bool            `json:"interrupted" yaml:"interrupted"`
	ConfigSource string          `json:"config_source" yaml:"config_source"`
	StartedAt    time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time       `json:"finished_at" yaml:"finished_at"`
	Duration     time.Duration   `json:"duration" yaml:"duration"`
	Totals       result.Counts   `json:"totals" yaml:"totals"`
	ModuleCounts map[string]int  `json:"module_counts" yaml:"module_counts"`
	Modules      []ModuleSummary `json:"modules" yaml:"modules"`
	Hooks        []HookResult    `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	EventCount   int             `json:"event_count" yaml:"event_count"`
	Warnings     int             `json:"warnings" yaml:"warnings"`
	Errors       int             `json:"errors" yaml:"errors"`
}

// Summarize combines the run report with the session's events.
func Summarize(report *result.RunReport, events []logging.LogEvent) *Summary {
	s := &Summary{
		SessionID:    report.SessionID,
		Host:         report.Host,
		RunType:      report.RunType,
		Status:       report.Status(),
		DryRun:       report.DryRun,
		Interrupted:  report.Interrupted,
		ConfigSource: report.ConfigSource,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		Duration:     report.Duration(),
		Totals:       report.Totals(),
		ModuleCounts: report.CountByStatus(),
		EventCount:   len(events),
	}

	items := make(map[string][]ItemResult)
	for _, ev := range events {
		switch strings.ToUpper(ev.Level) {
		case "WARN", "WARNING":
			s.Warnings++
		case "ERROR":
			s.Errors++
		}

		switch ev.EventType {
		case logging.EventItem:
			items[ev.Module] = upsertItem(items[ev.Module], ev)
		case logging.EventHook:
			h := HookResult{Hook: ev.Action, Status: ev.Status, Error: ev.Error}
			if ev.Duration != nil {
				h.Duration = *ev.Duration
			}
			s.Hooks = append(s.Hooks, h)
		}
	}

	for _, mr := range report.Results {
		s.Modules = append(s.Modules, ModuleSummary{ModuleResult: mr, Items: items[mr.Module]})
	}
	return s
}

// upsertItem keeps the latest action per item, in first-seen order.
func upsertItem(list []ItemResult, ev logging.LogEvent) []ItemResult {
	ir := ItemResult{
		Item:      ev.Item,
		Action:    ev.Action,
		Status:    ev.Status,
		Error:     ev.Error,
		Timestamp: ev.Timestamp,
	}
	if ev.Duration != nil {
		ir.Duration = *ev.Duration
	}
	for i := range list {
		if list[i].Item == ir.Item {
			list[i] = ir
			return list
		}
	}
	return append(list, ir)
}

// SummarizeSession reads events.jsonl from sessionDir and summarizes the run.
// A session without an events file still gets a summary.
func SummarizeSession(report *result.RunReport, sessionDir string) (*Summary, error) {
	var events []logging.LogEvent
	if sessionDir != "" {
		var err error
		events, err = logging.ReadEvents(filepath.Join(sessionDir, logging.EventsFile))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading session events: %w", err)
		}
	}
	return Summarize(report, events), nil
}

// Failures returns every failed item across all modules, sorted by module then item.
func (s *Summary) Failures() []ModuleItem {
	var out []ModuleItem
	for _, m := range s.Modules {
		for _, it := range m.Items {
			if it.Status == logging.StatusFailed {
				out = append(out, ModuleItem{Module: m.Module, ItemResult: it})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// ModuleItem is an item result tagged with its module.
type ModuleItem struct {
	Module string
	ItemResult
}

// Write stores the summary as JSON and YAML in dir and returns the JSON path.
func Write(s *Summary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling summary: %w", err)
	}
	jsonPath := filepath.Join(dir, SummaryJSON)
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", jsonPath, err)
	}

	yamlData, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling summary yaml: %w", err)
	}
	yamlPath := filepath.Join(dir, SummaryYAML)
	if err := os.WriteFile(yamlPath, yamlData, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", yamlPath, err)
	}
	return jsonPath, nil
}

// Load reads a summary.json written by Write.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}
