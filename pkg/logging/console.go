package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGreen  = "\033[32m"
)

// Console prints timestamped, colored lines for the operator. It is separate
// from the package logger so output shown to a user is not duplicated into
// the session files unless asked for.
type Console struct {
	mu      sync.Mutex
	logger  *log.Logger
	verbose bool
	color   bool
}

// New creates a Console writing to stdout. With verbose unset, Debug lines are dropped.
func New(verbose bool) *Console {
	return &Console{
		logger:  log.New(os.Stdout, "", 0),
		verbose: verbose,
		color:   enableColors(),
	}
}

// SetOutput changes the output destination and turns colors off.
func (c *Console) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.SetOutput(w)
	c.color = false
}

func (c *Console) print(color, format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	if c.color && color != "" {
		c.logger.Printf("%s[%s] %s%s", color, ts, msg, colorReset)
		return
	}
	c.logger.Printf("[%s] %s", ts, msg)
}

// Printf prints a regular message.
func (c *Console) Printf(format string, v ...interface{}) {
	c.print("", format, v...)
}

// Info prints an informational message and mirrors it to the session log.
func (c *Console) Info(format string, v ...interface{}) {
	c.print("", format, v...)
	Info(fmt.Sprintf(format, v...))
}

// Success prints a success message in green.
func (c *Console) Success(format string, v ...interface{}) {
	c.print(colorGreen, format, v...)
	Info(fmt.Sprintf(format, v...))
}

// Warning prints a warning message in yellow.
func (c *Console) Warning(format string, v ...interface{}) {
	c.print(colorYellow, format, v...)
	Warn(fmt.Sprintf(format, v...))
}

// Error prints an error message in red.
func (c *Console) Error(format string, v ...interface{}) {
	c.print(colorRed, format, v...)
	Error(fmt.Sprintf(format, v...))
}

// Debug prints a debug message in blue when verbose.
func (c *Console) Debug(format string, v ...interface{}) {
	if c.verbose {
		c.print(colorBlue, format, v...)
	}
	Debug(fmt.Sprintf(format, v...))
}

// Fatal prints an error message in red, closes the package logger and exits.
func (c *Console) Fatal(format string, v ...interface{}) {
	c.Error(format, v...)
	CloseLogger()
	os.Exit(1)
}
