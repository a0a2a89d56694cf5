//go:build windows

package logging

import "golang.org/x/sys/windows"

// enableColors turns on virtual terminal processing for the console and
// reports whether ANSI colors can be used.
func enableColors() bool {
	handle, err := windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	if err != nil {
		return false
	}
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		return false
	}
	mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
	return windows.SetConsoleMode(handle, mode) == nil
}
