// pkg/logging/helpers.go - helpers for the module and item events the orchestrator emits

package logging

import (
	"fmt"
	"time"
)

// Event types
const (
	EventModule = "module"
	EventItem   = "item"
	EventHook   = "hook"
	EventSystem = "system"
)

// Event statuses
const (
	StatusStarted    = "started"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
	StatusWouldApply = "would_apply"
)

// LogModuleStart records the start of a module run.
func LogModuleStart(module string, taskNumber int, dryRun bool) {
	Info("Module started", "module", module, "task", taskNumber, "dry_run", dryRun)
	logEventQuiet(EventModule, "run", StatusStarted,
		fmt.Sprintf("Starting %s", module),
		WithModule(module),
		WithContext("task_number", taskNumber),
		WithContext("dry_run", dryRun))
}

// LogModuleComplete records a finished module run with its item counts.
func LogModuleComplete(module string, detected, processed, failed int, duration time.Duration) {
	Info("Module completed", "module", module, "detected", detected, "processed", processed,
		"failed", failed, "duration", duration.Round(time.Millisecond))
	logEventQuiet(EventModule, "run", StatusCompleted,
		fmt.Sprintf("%s completed", module),
		WithModule(module),
		WithDuration(duration),
		WithContext("items_detected", detected),
		WithContext("items_processed", processed),
		WithContext("items_failed", failed))
}

// LogModuleFailed records a module that returned an error or panicked.
func LogModuleFailed(module string, err error, duration time.Duration) {
	Error("Module failed", "module", module, "error", err, "duration", duration.Round(time.Millisecond))
	logEventQuiet(EventModule, "run", StatusFailed,
		fmt.Sprintf("%s failed", module),
		WithModule(module),
		WithLevel("ERROR"),
		WithDuration(duration),
		WithError(err))
}

// LogModuleSkipped records a module that was not run.
func LogModuleSkipped(module, reason string) {
	Warn("Module skipped", "module", module, "reason", reason)
	logEventQuiet(EventModule, "run", StatusSkipped,
		fmt.Sprintf("%s skipped: %s", module, reason),
		WithModule(module),
		WithLevel("WARN"),
		WithContext("reason", reason))
}

// LogItemAction records one action on one diff item. A non-nil err marks it failed.
func LogItemAction(module, item, action, status string, err error, opts ...EventOption) {
	switch {
	case err != nil:
		Error("Item action failed", "module", module, "item", item, "action", action, "error", err)
	case status == StatusSkipped:
		Warn("Item skipped", "module", module, "item", item, "action", action)
	default:
		Info("Item action", "module", module, "item", item, "action", action, "status", status)
	}

	level := "INFO"
	if err != nil {
		level = "ERROR"
		status = StatusFailed
	}
	all := append([]EventOption{WithModule(module), WithItem(item), WithLevel(level), WithError(err)}, opts...)
	logEventQuiet(EventItem, action, status,
		fmt.Sprintf("%s %s: %s", action, item, status), all...)
}

// LogHookEvent records a pre or postflight script result.
func LogHookEvent(hook, status string, err error, duration time.Duration) {
	level := "INFO"
	if err != nil {
		level = "ERROR"
		Error("Hook failed", "hook", hook, "error", err)
	} else {
		Info("Hook finished", "hook", hook, "status", status, "duration", duration.Round(time.Millisecond))
	}
	logEventQuiet(EventHook, hook, status,
		fmt.Sprintf("%s %s", hook, status),
		WithLevel(level),
		WithDuration(duration),
		WithError(err))
}

// logEventQuiet writes an event, reporting write failures to the text log only.
func logEventQuiet(eventType, action, status, message string, opts ...EventOption) {
	l := current()
	if l == nil {
		return
	}
	event := LogEvent{
		EventType: eventType,
		Action:    action,
		Status:    status,
		Message:   message,
		Level:     "INFO",
		Source:    callerInfo(3),
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := l.writeEvent(event); err != nil {
		l.logMessage(LevelDebug, "Failed to write event", "error", err)
	}
}
