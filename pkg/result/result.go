// pkg/result/result.go - per-module results and the run report built from them.

package result

import (
	"time"
)

// Module result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"  // cancelled before it started
	StatusDisabled  = "disabled" // turned off in config
)

// Counts are the item tallies a module reports.
type Counts struct {
	Detected  int `json:"items_detected" yaml:"items_detected"`
	Processed int `json:"items_processed" yaml:"items_processed"`
	Failed    int `json:"items_failed" yaml:"items_failed"`
	Skipped   int `json:"items_skipped" yaml:"items_skipped"`
}

// Add sums two tallies.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Detected:  c.Detected + o.Detected,
		Processed: c.Processed + o.Processed,
		Failed:    c.Failed + o.Failed,
		Skipped:   c.Skipped + o.Skipped,
	}
}

// ModuleResult is the outcome of one selected task. Every selected task gets
// exactly one, whatever happened to it.
type ModuleResult struct {
	Module     string        `json:"module" yaml:"module"`
	TaskNumber int           `json:"task_number" yaml:"task_number"`
	Status     string        `json:"status" yaml:"status"`
	Success    bool          `json:"success" yaml:"success"`
	Counts     `yaml:",inline"`
	DryRun     bool          `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Inventory  string        `json:"inventory,omitempty" yaml:"inventory,omitempty"` // path of the saved scan
}

// RunReport aggregates one run.
type RunReport struct {
	SessionID    string         `json:"session_id" yaml:"session_id"`
	Host         string         `json:"host" yaml:"host"`
	RunType      string         `json:"run_type" yaml:"run_type"`
	DryRun       bool           `json:"dry_run" yaml:"dry_run"`
	ConfigSource string         `json:"config_source" yaml:"config_source"`
	ConfigHash   string         `json:"config_hash,omitempty" yaml:"config_hash,omitempty"`
	StartedAt    time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time      `json:"finished_at" yaml:"finished_at"`
	Interrupted  bool           `json:"interrupted" yaml:"interrupted"`
	Results      []ModuleResult `json:"results" yaml:"results"`
}

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether any module failed.
func (r *RunReport) Failed() bool {
	for _, m := range r.Results {
		if m.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Totals sums the item counts of every module.
func (r *RunReport) Totals() Counts {
	var c Counts
	for _, m := range r.Results {
		c = c.Add(m.Counts)
	}
	return c
}

// CountByStatus returns how many modules ended in each status.
func (r *RunReport) CountByStatus() map[string]int {
	out := make(map[string]int)
	for _, m := range r.Results {
		out[m.Status]++
	}
	return out
}

// Status is the overall status of the run.
func (r *RunReport) Status() string {
	switch {
	case r.Interrupted:
		return "interrupted"
	case r.Failed():
		return StatusFailed
	default:
		return StatusCompleted
	}
}
