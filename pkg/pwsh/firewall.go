package pwsh

import (
	"context"
	"fmt"
)

// FirewallProfile is the state of one Windows Firewall profile.
type FirewallProfile struct {
	Name    string `json:"Name"`
	Enabled bool   `json:"Enabled"`
}

// FirewallProfiles returns the Domain, Private and Public profile states.
func (s *Shell) FirewallProfiles(ctx context.Context) ([]FirewallProfile, error) {
	var profiles []FirewallProfile
	err := s.RunJSON(ctx, "Get-NetFirewallProfile | Select-Object Name, @{n='Enabled';e={[bool]$_.Enabled}}", &profiles)
	if err != nil {
		return nil, fmt.Errorf("failed to query firewall profiles: %w", err)
	}
	return profiles, nil
}

// SetFirewallProfile turns a firewall profile on or off.
func (s *Shell) SetFirewallProfile(ctx context.Context, name string, enabled bool) error {
	state := "False"
	if enabled {
		state = "True"
	}
	if _, err := s.Run(ctx, fmt.Sprintf("Set-NetFirewallProfile -Profile %s -Enabled %s", Quote(name), state)); err != nil {
		return fmt.Errorf("failed to set firewall profile %s: %w", name, err)
	}
	return nil
}
