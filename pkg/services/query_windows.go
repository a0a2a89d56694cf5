//go:build windows

package services

import (
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

// wqlEscaper escapes backslashes and quotes inside a WQL string literal.
var wqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func queryService(name string) (*win32Service, error) {
	var svcs []win32Service
	q := fmt.Sprintf("SELECT Name, DisplayName, StartMode, State FROM Win32_Service WHERE Name = '%s'",
		wqlEscaper.Replace(name))
	if err := wmi.Query(q, &svcs); err != nil {
		return nil, fmt.Errorf("WMI query for service %s failed: %w", name, err)
	}
	if len(svcs) == 0 {
		return nil, nil
	}
	return &svcs[0], nil
}
