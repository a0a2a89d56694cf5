//go:build !windows

package config

import "errors"

// ErrCSPUnsupported is returned where there is no Windows registry to read.
var ErrCSPUnsupported = errors.New("CSP registry settings are only available on Windows")

// LoadConfigFromCSP always fails outside Windows.
func LoadConfigFromCSP(dir string) (*Configuration, error) {
	return nil, ErrCSPUnsupported
}
