//go:build windows

package inventory

import (
	"fmt"

	"github.com/yusufpapurcu/wmi"
)

type win32ComputerSystem struct {
	Manufacturer string
	Model        string
	Domain       string
	PartOfDomain bool
}

type win32OperatingSystem struct {
	Caption     string
	Version     string
	BuildNumber string
}

type win32BIOS struct {
	SerialNumber      string
	SMBIOSBIOSVersion string
}

// hardwareFacts reads make, model, OS edition and BIOS serial from WMI.
func hardwareFacts() ([]Item, error) {
	var items []Item

	var systems []win32ComputerSystem
	if err := wmi.Query("SELECT Manufacturer, Model, Domain, PartOfDomain FROM Win32_ComputerSystem", &systems); err != nil {
		return items, fmt.Errorf("Win32_ComputerSystem: %w", err)
	}
	if len(systems) > 0 {
		s := systems[0]
		joined := "false"
		if s.PartOfDomain {
			joined = "true"
		}
		items = append(items, Item{ID: "computer", Name: s.Model, Source: "wmi", Properties: map[string]string{
			"manufacturer":   s.Manufacturer,
			"domain":         s.Domain,
			"part_of_domain": joined,
		}})
	}

	var oses []win32OperatingSystem
	if err := wmi.Query("SELECT Caption, Version, BuildNumber FROM Win32_OperatingSystem", &oses); err != nil {
		return items, fmt.Errorf("Win32_OperatingSystem: %w", err)
	}
	if len(oses) > 0 {
		items = append(items, Item{ID: "os", Name: oses[0].Caption, Version: oses[0].Version, Source: "wmi",
			Properties: map[string]string{"build": oses[0].BuildNumber}})
	}

	var bios []win32BIOS
	if err := wmi.Query("SELECT SerialNumber, SMBIOSBIOSVersion FROM Win32_BIOS", &bios); err != nil {
		return items, fmt.Errorf("Win32_BIOS: %w", err)
	}
	if len(bios) > 0 {
		items = append(items, Item{ID: "bios", Version: bios[0].SMBIOSBIOSVersion, Source: "wmi",
			Properties: map[string]string{"serial": bios[0].SerialNumber}})
	}
	return items, nil
}
