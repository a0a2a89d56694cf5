// pkg/utils/hash.go - hashing helpers used to fingerprint config and list files.

package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"github.com/windowsadmins/winmaint/pkg/logging"
)

// FileSHA256 returns the SHA256 sum of a file.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CombinedSHA256 hashes the named files in sorted order into one fingerprint.
// Missing files contribute their name only, so adding a file changes the result.
func CombinedSHA256(paths ...string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, p := range sorted {
		io.WriteString(h, p)
		h.Write([]byte{0})
		f, err := os.Open(p)
		if err != nil {
			logging.Debug("Skipping file for fingerprint", "path", p, "error", err)
			continue
		}
		if _, err := io.Copy(h, f); err != nil {
			logging.Warn("Failed to hash file", "path", p, "error", err)
		}
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil))
}
