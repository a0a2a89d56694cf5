// pkg/progress/progress.go - run progress reporting for the console

package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Reporter receives progress of a maintenance run.
type Reporter interface {
	Message(txt string)
	Detail(txt string)
	Percent(pct int) // -1 = indeterminate
	Error(err error)
	Stop()
}

// NoOpReporter implements Reporter but does nothing (for headless operation)
type NoOpReporter struct{}

func NewNoOpReporter() Reporter {
	return &NoOpReporter{}
}

func (r *NoOpReporter) Message(txt string) {}
func (r *NoOpReporter) Detail(txt string)  {}
func (r *NoOpReporter) Percent(pct int)    {}
func (r *NoOpReporter) Error(err error)    {}
func (r *NoOpReporter) Stop()              {}

// ConsoleReporter prints progress lines with a text bar.
type ConsoleReporter struct {
	mu        sync.Mutex
	out       io.Writer
	verbosity int
	percent   int
	stopped   bool
}

// NewConsoleReporter writes to out. Detail lines need verbosity of at least 1.
func NewConsoleReporter(out io.Writer, verbosity int) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbosity: verbosity, percent: -1}
}

func (r *ConsoleReporter) Message(txt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.percent >= 0 {
		fmt.Fprintf(r.out, "%s %s\n", bar(r.percent), txt)
		return
	}
	fmt.Fprintln(r.out, txt)
}

func (r *ConsoleReporter) Detail(txt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.verbosity < 1 {
		return
	}
	fmt.Fprintf(r.out, "    %s\n", txt)
}

func (r *ConsoleReporter) Percent(pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pct > 100 {
		pct = 100
	}
	r.percent = pct
}

func (r *ConsoleReporter) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || err == nil {
		return
	}
	fmt.Fprintf(r.out, "    error: %v\n", err)
}

func (r *ConsoleReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

// bar renders pct as a 20 cell bar, e.g. "[#####               ]  25%".
func bar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	filled := pct / 5
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(" ", 20-filled), pct)
}
