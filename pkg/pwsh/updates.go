package pwsh

import (
	"context"
	"fmt"
	"strings"
)

// Update is a pending Windows update reported by PSWindowsUpdate.
type Update struct {
	KB             string `json:"KB"`
	Title          string `json:"Title"`
	Size           int64  `json:"Size"`
	RebootRequired bool   `json:"RebootRequired"`
}

const importPSWindowsUpdate = `if (-not (Get-Module -ListAvailable -Name PSWindowsUpdate)) { ` +
	`Install-PackageProvider -Name NuGet -Force -Scope AllUsers | Out-Null; ` +
	`Install-Module -Name PSWindowsUpdate -Force -Scope AllUsers -AllowClobber }; ` +
	`Import-Module PSWindowsUpdate`

// PendingUpdates lists updates available from Microsoft Update.
func (s *Shell) PendingUpdates(ctx context.Context, includeDrivers bool) ([]Update, error) {
	query := "Get-WindowsUpdate -MicrosoftUpdate"
	if !includeDrivers {
		query += " -NotCategory 'Drivers'"
	}
	script := fmt.Sprintf("%s; %s | Select-Object KB, Title, "+
		"@{n='Size';e={[int64]$_.MaxDownloadSize}}, "+
		"@{n='RebootRequired';e={[bool]$_.RebootRequired}}", importPSWindowsUpdate, query)

	var updates []Update
	if err := s.RunJSON(ctx, script, &updates); err != nil {
		return nil, fmt.Errorf("failed to query pending updates: %w", err)
	}
	for i := range updates {
		updates[i].KB = NormalizeKB(updates[i].KB)
	}
	return updates, nil
}

// InstallUpdate installs one update by KB article and never reboots.
func (s *Shell) InstallUpdate(ctx context.Context, kb string) error {
	script := fmt.Sprintf("%s; Install-WindowsUpdate -MicrosoftUpdate -KBArticleID %s -AcceptAll -IgnoreReboot -Confirm:$false | Out-Null",
		importPSWindowsUpdate, Quote(NormalizeKB(kb)))
	if _, err := s.Run(ctx, script); err != nil {
		return fmt.Errorf("failed to install %s: %w", kb, err)
	}
	return nil
}

// NormalizeKB upper-cases a KB id and adds the KB prefix when it is missing.
func NormalizeKB(kb string) string {
	kb = strings.ToUpper(strings.TrimSpace(kb))
	if kb == "" || strings.HasPrefix(kb, "KB") {
		return kb
	}
	return "KB" + kb
}
