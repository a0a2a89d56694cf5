// pkg/blocking/blocking.go - detects running applications that block removing a package

package blocking

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/winmaint/pkg/logging"
)

// Process is the part of a running process used for matching.
type Process struct {
	Name string
	Exe  string
}

// Checker matches blocking application names against running processes.
type Checker struct {
	Processes func() ([]Process, error)
}

// NewChecker returns a Checker over the live process table.
func NewChecker() *Checker {
	return &Checker{Processes: runningProcesses}
}

func runningProcesses() ([]Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		exe, _ := p.Exe()
		out = append(out, Process{Name: name, Exe: exe})
	}
	return out, nil
}

// RunningApps returns the entries of apps that match a running process.
// A process list failure is logged and treated as nothing running.
func (c *Checker) RunningApps(apps []string) []string {
	if len(apps) == 0 {
		return nil
	}
	procs, err := c.Processes()
	if err != nil {
		logging.Error("Failed to get process list", "error", err)
		return nil
	}

	var running []string
	for _, app := range apps {
		for _, p := range procs {
			if matches(app, p) {
				logging.Debug("Found running blocking app", "app", app, "process", p.Name)
				running = append(running, app)
				break
			}
		}
	}
	return running
}

// matches compares the way blocking_apps entries are written: a full path is
// compared against the executable, a name with .exe against the process name,
// and a bare name against the process name with or without .exe.
func matches(app string, p Process) bool {
	clean := strings.ToLower(app)
	name := strings.ToLower(p.Name)
	switch {
	case strings.Contains(clean, `\`) || strings.HasPrefix(clean, "/"):
		return p.Exe != "" && strings.EqualFold(p.Exe, app)
	case strings.HasSuffix(clean, ".exe"):
		return name == clean
	default:
		return name == clean || name == clean+".exe"
	}
}
