package inventory

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/windowsadmins/winmaint/pkg/logging"
)

// System item IDs.
const (
	ItemHost   = "host"
	ItemCPU    = "cpu"
	ItemMemory = "memory"
)

// ScanSystem collects host, CPU, memory and disk facts, plus hardware facts
// from WMI on Windows.
func ScanSystem(ctx context.Context, inv *Inventory) {
	if h, err := host.InfoWithContext(ctx); err != nil {
		inv.AddError(fmt.Errorf("host: %w", err))
	} else {
		inv.Add(Item{
			ID:      ItemHost,
			Name:    h.Hostname,
			Version: h.PlatformVersion,
			Source:  "gopsutil",
			Properties: map[string]string{
				"os":              h.OS,
				"platform":        h.Platform,
				"platform_family": h.PlatformFamily,
				"kernel_version":  h.KernelVersion,
				"kernel_arch":     h.KernelArch,
				"uptime_seconds":  strconv.FormatUint(h.Uptime, 10),
				"boot_time":       strconv.FormatUint(h.BootTime, 10),
				"arch":            runtime.GOARCH,
			},
		})
	}

	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		inv.AddError(fmt.Errorf("cpu: %w", err))
	} else if len(infos) > 0 {
		cores, _ := cpu.CountsWithContext(ctx, true)
		inv.Add(Item{
			ID:     ItemCPU,
			Name:   infos[0].ModelName,
			Source: "gopsutil",
			Properties: map[string]string{
				"vendor":        infos[0].VendorID,
				"logical_cores": strconv.Itoa(cores),
				"mhz":           strconv.FormatFloat(infos[0].Mhz, 'f', 0, 64),
			},
		})
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		inv.AddError(fmt.Errorf("memory: %w", err))
	} else {
		inv.Add(Item{
			ID:     ItemMemory,
			Source: "gopsutil",
			Properties: map[string]string{
				"total_bytes":     strconv.FormatUint(vm.Total, 10),
				"available_bytes": strconv.FormatUint(vm.Available, 10),
				"used_percent":    strconv.FormatFloat(vm.UsedPercent, 'f', 1, 64),
			},
		})
	}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		inv.AddError(fmt.Errorf("disk: %w", err))
	}
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			logging.Debug("Skipping disk usage", "mount", p.Mountpoint, "error", err)
			continue
		}
		inv.Add(Item{
			ID:     "disk:" + p.Mountpoint,
			Name:   p.Device,
			Source: "gopsutil",
			State:  p.Fstype,
			Properties: map[string]string{
				"total_bytes":  strconv.FormatUint(usage.Total, 10),
				"free_bytes":   strconv.FormatUint(usage.Free, 10),
				"used_percent": strconv.FormatFloat(usage.UsedPercent, 'f', 1, 64),
			},
		})
	}

	items, err := hardwareFacts()
	if err != nil {
		logging.Warn("Hardware facts unavailable", "error", err)
		inv.AddError(err)
	}
	inv.Add(items...)
}
