// pkg/config/paths.go - locating the configuration directory.

package config

import (
	"os"
	"path/filepath"
)

// EnvConfigDir overrides the configuration directory when set.
const EnvConfigDir = "WINMAINT_CONFIG_DIR"

// DiscoverConfigDir returns the directory configuration is read from, in order:
// the explicit flag value, $WINMAINT_CONFIG_DIR, a "config" directory beside the
// executable, and finally DefaultBaseDir(). The second return value names the
// rule that matched.
func DiscoverConfigDir(flagValue string) (string, string) {
	if flagValue != "" {
		return filepath.Clean(flagValue), "flag"
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Clean(env), "env"
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, "executable"
		}
	}
	return DefaultBaseDir(), "default"
}
