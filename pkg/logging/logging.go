// pkg/logging/logging.go - timestamped session logging for winmaint
//
// Every run gets its own directory under the logs root (YYYY-MM-DD-HHMMss)
// holding a plain text log, a JSON-lines event stream and a session record.
// All text lines are mirrored to a size-rotated transcript shared by all runs.

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/windowsadmins/winmaint/pkg/config"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a LogLevel. Unknown names mean INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Session directory name layout; lexical order is chronological.
const sessionDirLayout = "2006-01-02-150405"

// File names inside a session directory.
const (
	TextLogFile   = "winmaint.log"
	EventsFile    = "events.jsonl"
	SessionFile   = "session.json"
	TranscriptLog = "transcript.log"
)

// RetentionPolicy defines log retention rules
type RetentionPolicy struct {
	Runs       int // Keep the newest N session directories
	MaxAgeDays int // Delete session directories older than this
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	BaseDir             string
	RunType             string // interactive, noninteractive, dryrun
	Component           string
	Level               LogLevel
	Retention           RetentionPolicy
	EnableConsole       bool
	Console             io.Writer // defaults to os.Stdout
	TranscriptMaxSizeMB int
}

// Logger writes leveled key-value log lines and structured events for one session.
type Logger struct {
	mu           sync.Mutex
	logger       *log.Logger
	logLevel     LogLevel
	logFile      *os.File
	eventsFile   *os.File
	transcript   *lumberjack.Logger
	config       LoggerConfig
	sessionStart time.Time
	logDir       string
	hostname     string
	sessionID    string
	session      *LogSession
}

var (
	instanceMu sync.Mutex
	instance   *Logger
)

// Init initializes the package logger from the winmaint configuration.
func Init(cfg *config.Configuration, runType string) error {
	return InitWithConfig(LoggerConfig{
		BaseDir:   cfg.LogsPath,
		RunType:   runType,
		Component: "winmaint",
		Level:     ParseLevel(cfg.LogLevel),
		Retention: RetentionPolicy{
			Runs:       cfg.LogRetention.Runs,
			MaxAgeDays: cfg.LogRetention.MaxAgeDays,
		},
		EnableConsole:       cfg.Verbose,
		TranscriptMaxSizeMB: cfg.TranscriptMaxSizeMB,
	})
}

// InitWithConfig initializes the package logger with an explicit LoggerConfig,
// closing any logger initialized earlier.
func InitWithConfig(logCfg LoggerConfig) error {
	l, err := newLogger(logCfg)
	if err != nil {
		return err
	}
	instanceMu.Lock()
	old := instance
	instance = l
	instanceMu.Unlock()
	if old != nil {
		old.close()
	}
	return nil
}

func current() *Logger {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

func newLogger(cfg LoggerConfig) (*Logger, error) {
	sessionStart := time.Now()
	if cfg.Component == "" {
		cfg.Component = "winmaint"
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base log directory: %w", err)
	}

	// Retention runs before the new directory exists so it never counts itself
	if err := performCleanup(cfg.BaseDir, cfg.Retention, sessionStart); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to perform log cleanup: %v\n", err)
	}

	logDir := filepath.Join(cfg.BaseDir, sessionStart.Format(sessionDirLayout))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create timestamped log directory %s: %w", logDir, err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	l := &Logger{
		config:       cfg,
		logLevel:     cfg.Level,
		sessionStart: sessionStart,
		logDir:       logDir,
		hostname:     hostname,
		sessionID:    uuid.New().String(),
	}

	var err error
	l.logFile, err = os.OpenFile(filepath.Join(logDir, TextLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open main log file: %w", err)
	}
	l.eventsFile, err = os.OpenFile(filepath.Join(logDir, EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.logFile.Close()
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}

	maxSize := cfg.TranscriptMaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	l.transcript = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.BaseDir, TranscriptLog),
		MaxSize:    maxSize,
		MaxBackups: 5,
		MaxAge:     cfg.Retention.MaxAgeDays,
	}

	writers := []io.Writer{l.logFile, l.transcript}
	if cfg.EnableConsole {
		writers = append(writers, cfg.Console)
	}
	l.logger = log.New(io.MultiWriter(writers...), "", 0)

	return l, nil
}

// performCleanup removes session directories beyond the retention count or older than MaxAgeDays.
func performCleanup(baseDir string, retention RetentionPolicy, now time.Time) error {
	dirs, err := SessionDirs(baseDir)
	if err != nil {
		return err
	}

	// Newest first
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	toDelete := make(map[string]bool)
	if retention.Runs > 0 && len(dirs) >= retention.Runs {
		// Keep Runs-1 old directories so the new session makes Runs
		for _, name := range dirs[retention.Runs-1:] {
			toDelete[name] = true
		}
	}
	if retention.MaxAgeDays > 0 {
		maxAge := time.Duration(retention.MaxAgeDays) * 24 * time.Hour
		for _, name := range dirs {
			ts, err := time.ParseInLocation(sessionDirLayout, name, time.Local)
			if err == nil && now.Sub(ts) > maxAge {
				toDelete[name] = true
			}
		}
	}

	var firstErr error
	for name := range toDelete {
		if err := os.RemoveAll(filepath.Join(baseDir, name)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SessionDirs returns the names of all session directories under baseDir in chronological order.
func SessionDirs(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != len(sessionDirLayout) {
			continue
		}
		if _, err := time.Parse(sessionDirLayout, entry.Name()); err == nil {
			dirs = append(dirs, entry.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// CloseLogger closes the package logger's files.
func CloseLogger() {
	instanceMu.Lock()
	l := instance
	instance = nil
	instanceMu.Unlock()
	if l != nil {
		l.close()
	}
}

func (l *Logger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
	if l.eventsFile != nil {
		l.eventsFile.Close()
		l.eventsFile = nil
	}
	if l.transcript != nil {
		l.transcript.Close()
		l.transcript = nil
	}
	l.logger = nil
}

// logMessage writes one text line: "[ts] LEVEL message k=v ..."
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: %s %s %v\n", level.String(), message, keyValues)
		return
	}
	if level > l.logLevel {
		return
	}

	ts := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %-5s %s", ts, level.String(), message)
	line += formatKeyValues(keyValues)

	if level == LevelError {
		line = "----------------------------------------\n" + line
	}
	l.logger.Println(line)
}

// formatKeyValues renders pairs inline, or one per line when there are more than four.
func formatKeyValues(keyValues []interface{}) string {
	if len(keyValues) == 0 {
		return ""
	}
	var b strings.Builder
	multiline := len(keyValues)/2 > 4
	for i := 0; i < len(keyValues); i += 2 {
		key := fmt.Sprintf("%v", keyValues[i])
		var val interface{} = "(missing)"
		if i+1 < len(keyValues) {
			val = keyValues[i+1]
		}
		if multiline {
			fmt.Fprintf(&b, "\n        %s: %v", key, val)
		} else {
			fmt.Fprintf(&b, " %s=%v", key, val)
		}
	}
	return b.String()
}

func logAt(level LogLevel, message string, keyValues ...interface{}) {
	l := current()
	if l == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: %s %s %v\n", level.String(), message, keyValues)
		return
	}
	l.logMessage(level, message, keyValues...)
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) { logAt(LevelInfo, message, keyValues...) }

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) { logAt(LevelDebug, message, keyValues...) }

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) { logAt(LevelWarn, message, keyValues...) }

// Error logs error messages.
func Error(message string, keyValues ...interface{}) { logAt(LevelError, message, keyValues...) }

// LogStructured logs a message with explicit properties, sorted by key.
func LogStructured(level LogLevel, message string, properties map[string]interface{}) {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	keyValues := make([]interface{}, 0, len(properties)*2)
	for _, k := range keys {
		keyValues = append(keyValues, k, properties[k])
	}
	logAt(level, message, keyValues...)
}

// GetCurrentLogDir returns the current timestamped log directory
func GetCurrentLogDir() string {
	l := current()
	if l == nil {
		return ""
	}
	return l.logDir
}

// GetSessionID returns the current session ID
func GetSessionID() string {
	l := current()
	if l == nil {
		return ""
	}
	return l.sessionID
}

// SetLevel changes the minimum level written by the package logger.
func SetLevel(level LogLevel) {
	l := current()
	if l == nil {
		return
	}
	l.mu.Lock()
	l.logLevel = level
	l.mu.Unlock()
}
