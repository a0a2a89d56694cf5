// pkg/logging/events.go - structured session and event records for the log processor

package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// LogSession represents a complete maintenance run
type LogSession struct {
	SessionID   string                 `json:"session_id"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	RunType     string                 `json:"run_type"` // interactive, noninteractive, dryrun
	Status      string                 `json:"status"`   // running, completed, failed, interrupted
	Summary     SessionSummary         `json:"summary"`
	Environment map[string]interface{} `json:"environment"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SessionSummary provides high-level session metrics
type SessionSummary struct {
	TotalModules   int           `json:"total_modules"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	ItemsDetected  int           `json:"items_detected"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsFailed    int           `json:"items_failed"`
	Duration       time.Duration `json:"duration"`
	ModulesRun     []string      `json:"modules_run"`
}

// LogEvent represents individual actions within a session
type LogEvent struct {
	EventID   string                 `json:"event_id"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	EventType string                 `json:"event_type"` // module, item, hook, system
	Module    string                 `json:"module,omitempty"`
	Item      string                 `json:"item,omitempty"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"` // started, completed, failed, skipped, would_apply
	Message   string                 `json:"message"`
	Duration  *time.Duration         `json:"duration,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Source    SourceInfo             `json:"source"`
}

// SourceInfo tracks where events originated for debugging
type SourceInfo struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Line     int    `json:"line"`
}

// EventOption allows customizing log events
type EventOption func(*LogEvent)

// WithModule sets the module the event belongs to
func WithModule(name string) EventOption {
	return func(e *LogEvent) { e.Module = name }
}

// WithItem sets the item (package, registry value, service, update) the event is about
func WithItem(id string) EventOption {
	return func(e *LogEvent) { e.Item = id }
}

// WithDuration sets the duration for the event
func WithDuration(duration time.Duration) EventOption {
	return func(e *LogEvent) { e.Duration = &duration }
}

// WithError sets the error message for the event
func WithError(err error) EventOption {
	return func(e *LogEvent) {
		if err != nil {
			e.Error = err.Error()
		}
	}
}

// WithContext adds context information to the event
func WithContext(key string, value interface{}) EventOption {
	return func(e *LogEvent) {
		if e.Context == nil {
			e.Context = make(map[string]interface{})
		}
		e.Context[key] = value
	}
}

// WithLevel sets the log level for the event
func WithLevel(level string) EventOption {
	return func(e *LogEvent) { e.Level = level }
}

// StartSession writes the initial session.json for this logger's session.
func (l *Logger) StartSession(metadata map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.session = &LogSession{
		SessionID:   l.sessionID,
		StartTime:   l.sessionStart,
		RunType:     l.config.RunType,
		Status:      "running",
		Environment: l.gatherEnvironmentInfo(),
		Metadata:    metadata,
		Summary:     SessionSummary{ModulesRun: make([]string, 0)},
	}
	return l.writeSession()
}

// EndSession completes the session record with its final status and summary.
func (l *Logger) EndSession(status string, summary SessionSummary) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return fmt.Errorf("no active session to end")
	}
	now := time.Now()
	summary.Duration = now.Sub(l.sessionStart)
	l.session.EndTime = &now
	l.session.Status = status
	l.session.Summary = summary
	return l.writeSession()
}

// writeSession rewrites session.json; callers hold l.mu.
func (l *Logger) writeSession() error {
	data, err := json.MarshalIndent(l.session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	path := filepath.Join(l.logDir, SessionFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LogEvent appends a structured event to events.jsonl.
func (l *Logger) LogEvent(eventType, action, status, message string, opts ...EventOption) error {
	event := LogEvent{
		EventType: eventType,
		Action:    action,
		Status:    status,
		Message:   message,
		Level:     "INFO",
		Source:    callerInfo(2),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return l.writeEvent(event)
}

func (l *Logger) writeEvent(event LogEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.eventsFile == nil {
		return fmt.Errorf("no active session for logging event")
	}
	event.SessionID = l.sessionID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.EventID == "" {
		event.EventID = fmt.Sprintf("%s-%d", l.sessionID, event.Timestamp.UnixNano())
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := l.eventsFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// callerInfo reports the caller skip frames above it.
func callerInfo(skip int) SourceInfo {
	info := SourceInfo{}
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return info
	}
	info.File = filepath.Base(file)
	info.Line = line
	if fn := runtime.FuncForPC(pc); fn != nil {
		info.Function = filepath.Base(fn.Name())
	}
	return info
}

// gatherEnvironmentInfo collects system environment for session context
func (l *Logger) gatherEnvironmentInfo() map[string]interface{} {
	env := map[string]interface{}{
		"hostname":    l.hostname,
		"platform":    runtime.GOOS,
		"arch":        runtime.GOARCH,
		"log_version": "1.0",
		"process_id":  os.Getpid(),
	}
	if user, exists := os.LookupEnv("USERNAME"); exists {
		env["user"] = user
	}
	if domain, exists := os.LookupEnv("USERDOMAIN"); exists {
		env["domain"] = domain
	}
	return env
}

// StartSession begins the structured session of the package logger.
func StartSession(metadata map[string]interface{}) error {
	l := current()
	if l == nil {
		return fmt.Errorf("logging not initialized")
	}
	return l.StartSession(metadata)
}

// EndSession completes the structured session of the package logger.
func EndSession(status string, summary SessionSummary) error {
	l := current()
	if l == nil {
		return fmt.Errorf("logging not initialized")
	}
	return l.EndSession(status, summary)
}

// Event writes a structured event through the package logger.
func Event(eventType, action, status, message string, opts ...EventOption) error {
	l := current()
	if l == nil {
		return fmt.Errorf("logger not initialized")
	}
	event := LogEvent{
		EventType: eventType,
		Action:    action,
		Status:    status,
		Message:   message,
		Level:     "INFO",
		Source:    callerInfo(2),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return l.writeEvent(event)
}

// ReadEvents reads every event from an events.jsonl file, skipping malformed lines.
func ReadEvents(path string) ([]LogEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	var events []LogEvent
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// ReadSession reads a session.json file.
func ReadSession(path string) (*LogSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("session file %s does not exist: %w", path, err)
		}
		return nil, err
	}
	var session LogSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	return &session, nil
}

// FilterEvents returns the events matching every non-empty field of the filter.
func FilterEvents(events []LogEvent, filter LogEvent) []LogEvent {
	var out []LogEvent
	for _, e := range events {
		if filter.Level != "" && e.Level != filter.Level {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Module != "" && e.Module != filter.Module {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out
}
