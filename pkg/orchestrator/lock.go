// pkg/orchestrator/lock.go - single-instance run lock

package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/logging"
)

// ErrLocked means another winmaint process holds the run lock.
var ErrLocked = errors.New("another winmaint instance is running")

// LockFileName is created next to the history database.
const LockFileName = "winmaint.lock"

// pidExists is replaced in tests.
var pidExists = func(pid int32) (bool, error) {
	return process.PidExists(pid)
}

// Lock is a held run lock.
type Lock struct {
	path string
}

// LockPath returns where the run lock for cfg lives.
func LockPath(cfg *config.Configuration) string {
	return filepath.Join(filepath.Dir(cfg.HistoryPath), LockFileName)
}

// AcquireLock creates the lock file holding our PID. A lock left behind by a
// process that no longer exists is taken over.
func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("writing lock file %s: %v", path, errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file %s: %w", path, err)
		}

		pid, alive := lockOwner(path)
		if alive {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrLocked, pid, path)
		}
		logging.Warn("Removing stale run lock", "path", path, "pid", pid)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
}

// lockOwner reads the PID in the lock file and reports whether it still runs.
// An unreadable or empty lock is treated as stale.
func lockOwner(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if pid == os.Getpid() {
		return pid, true
	}
	alive, err := pidExists(int32(pid))
	if err != nil {
		// Can't tell; keep the lock.
		return pid, true
	}
	return pid, alive
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file %s: %w", l.path, err)
	}
	return nil
}
