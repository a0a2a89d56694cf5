//go:build !windows

package utils

// PatchWindowsArgs is a no-op outside Windows; os.Args is already exact.
func PatchWindowsArgs() {}
