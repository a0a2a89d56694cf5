//go:build windows

package execx

import (
	"os/exec"
	"syscall"
)

// Windows constants from Win32 API
const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
