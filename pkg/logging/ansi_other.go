//go:build !windows

package logging

import (
	"os"

	"golang.org/x/term"
)

func enableColors() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
