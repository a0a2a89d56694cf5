// pkg/inventory/inventory.go - Type1 scan results and their on-disk JSON form.

package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Item is one detected thing: an installed package, a registry value,
// a service, a scheduled task, a pending update or a system fact.
type Item struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Version    string            `json:"version,omitempty"`
	Source     string            `json:"source,omitempty"`
	State      string            `json:"state,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Inventory is the output of one module's scan.
type Inventory struct {
	Module      string    `json:"module"`
	Host        string    `json:"host"`
	CollectedAt time.Time `json:"collected_at"`
	Items       []Item    `json:"items"`
	Errors      []string  `json:"errors,omitempty"` // partial scan failures
}

// New starts an empty inventory for module on this host.
func New(module string) *Inventory {
	host, _ := os.Hostname()
	return &Inventory{
		Module:      module,
		Host:        host,
		CollectedAt: time.Now(),
		Items:       []Item{},
	}
}

// Add appends items.
func (inv *Inventory) Add(items ...Item) {
	inv.Items = append(inv.Items, items...)
}

// AddError records a scan failure that did not stop the scan.
func (inv *Inventory) AddError(err error) {
	if err != nil {
		inv.Errors = append(inv.Errors, err.Error())
	}
}

// Save writes the inventory as <dir>/<module>.json and returns the path.
func Save(inv *Inventory, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create inventory directory: %w", err)
	}
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal inventory: %w", err)
	}
	path := filepath.Join(dir, inv.Module+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write inventory %s: %w", path, err)
	}
	return path, nil
}

// Load reads an inventory file written by Save.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory %s: %w", path, err)
	}
	return &inv, nil
}
