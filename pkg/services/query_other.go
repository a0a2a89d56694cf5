//go:build !windows

package services

func queryService(name string) (*win32Service, error) {
	return nil, ErrUnsupported
}
