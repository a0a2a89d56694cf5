// pkg/schtasks/schtasks.go - scheduled task state via schtasks.exe.

package schtasks

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

// ErrNotFound means no task exists at the given path.
var ErrNotFound = errors.New("scheduled task not found")

// Task is the observed state of one scheduled task.
type Task struct {
	Path    string
	Status  string // Ready, Running, Disabled, ...
	NextRun string
}

// Enabled reports whether the task can run.
func (t Task) Enabled() bool { return !strings.EqualFold(t.Status, "Disabled") }

// Scheduler reads and disables scheduled tasks.
type Scheduler interface {
	Query(ctx context.Context, path string) (Task, error)
	Disable(ctx context.Context, path string) error
}

// Schtasks drives schtasks.exe.
type Schtasks struct {
	Runner execx.Runner
	Exe    string
}

// New returns a schtasks.exe adapter.
func New(r execx.Runner) *Schtasks {
	return &Schtasks{Runner: r, Exe: "schtasks.exe"}
}

// Query returns the state of the task at path.
func (s *Schtasks) Query(ctx context.Context, path string) (Task, error) {
	out, err := s.Runner.Run(ctx, s.Exe, "/Query", "/TN", path, "/FO", "CSV", "/NH")
	if err != nil {
		if isNotFound(out, err) {
			return Task{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return Task{}, fmt.Errorf("failed to query task %s: %w", path, err)
	}
	tasks, err := parseCSV(out.Stdout)
	if err != nil {
		return Task{}, err
	}
	for _, t := range tasks {
		if strings.EqualFold(t.Path, path) {
			return t, nil
		}
	}
	if len(tasks) > 0 {
		return tasks[0], nil
	}
	return Task{}, fmt.Errorf("%s: %w", path, ErrNotFound)
}

// Disable disables the task at path.
func (s *Schtasks) Disable(ctx context.Context, path string) error {
	out, err := s.Runner.Run(ctx, s.Exe, "/Change", "/TN", path, "/Disable")
	if err != nil {
		if isNotFound(out, err) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to disable task %s: %w", path, err)
	}
	return nil
}

func isNotFound(out execx.Output, err error) bool {
	msg := strings.ToLower(out.Stderr + out.Stdout)
	if msg == "" {
		msg = strings.ToLower(err.Error())
	}
	return strings.Contains(msg, "cannot find") || strings.Contains(msg, "does not exist")
}

// parseCSV reads "TaskName","Next Run Time","Status" rows.
func parseCSV(output string) ([]Task, error) {
	r := csv.NewReader(strings.NewReader(output))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var tasks []Task
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse schtasks output: %w", err)
		}
		if len(rec) < 3 || strings.EqualFold(rec[0], "TaskName") {
			continue
		}
		tasks = append(tasks, Task{Path: rec[0], NextRun: rec[1], Status: rec[2]})
	}
	return tasks, nil
}

// MemoryScheduler is an in-memory Scheduler.
type MemoryScheduler struct {
	mu    sync.Mutex
	tasks map[string]Task
	Fail  map[string]error
}

// NewMemoryScheduler returns a scheduler holding the given tasks.
func NewMemoryScheduler(tasks ...Task) *MemoryScheduler {
	m := &MemoryScheduler{tasks: make(map[string]Task), Fail: make(map[string]error)}
	for _, t := range tasks {
		m.tasks[strings.ToLower(t.Path)] = t
	}
	return m
}

func (m *MemoryScheduler) Query(ctx context.Context, path string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[strings.ToLower(path)]
	if !ok {
		return Task{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return t, nil
}

func (m *MemoryScheduler) Disable(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[path]; err != nil {
		return err
	}
	key := strings.ToLower(path)
	t, ok := m.tasks[key]
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	t.Status = "Disabled"
	m.tasks[key] = t
	return nil
}
