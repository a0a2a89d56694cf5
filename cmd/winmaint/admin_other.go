//go:build !windows

package main

import "os"

// adminCheck treats root as administrator.
func adminCheck() (bool, error) {
	return os.Geteuid() == 0, nil
}
