//go:build !windows

package inventory

// hardwareFacts has no WMI source outside Windows.
func hardwareFacts() ([]Item, error) {
	return nil, nil
}
