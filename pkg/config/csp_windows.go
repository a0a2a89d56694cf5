//go:build windows

package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// LoadConfigFromCSP loads configuration from Windows CSP OMA-URI registry settings.
// This serves as a fallback when no configuration file exists.
func LoadConfigFromCSP(dir string) (*Configuration, error) {
	cfg := GetDefaultConfig(dir)

	key, err := registry.OpenKey(registry.LOCAL_MACHINE, CSPRegistryPath, registry.READ)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSP registry key %s: %v", CSPRegistryPath, err)
	}
	defer key.Close()

	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)
	loadStringFromRegistry(key, "LogsPath", &cfg.LogsPath)
	loadStringFromRegistry(key, "InventoryPath", &cfg.InventoryPath)
	loadStringFromRegistry(key, "ReportsPath", &cfg.ReportsPath)
	loadStringFromRegistry(key, "HistoryPath", &cfg.HistoryPath)
	loadStringFromRegistry(key, "ListsPath", &cfg.ListsPath)
	loadStringFromRegistry(key, "PreflightFailureAction", &cfg.PreflightFailureAction)
	loadStringFromRegistry(key, "PostflightFailureAction", &cfg.PostflightFailureAction)

	loadIntFromRegistry(key, "CommandTimeoutMinutes", &cfg.CommandTimeoutMinutes)
	loadIntFromRegistry(key, "TranscriptMaxSizeMB", &cfg.TranscriptMaxSizeMB)

	loadBoolFromRegistry(key, "DryRun", &cfg.DryRun)
	loadBoolFromRegistry(key, "NonInteractive", &cfg.NonInteractive)
	loadBoolFromRegistry(key, "NoPreflight", &cfg.NoPreflight)
	loadBoolFromRegistry(key, "Verbose", &cfg.Verbose)
	loadBoolFromRegistry(key, "Debug", &cfg.Debug)

	loadStringArrayFromRegistry(key, "PackageManagers", &cfg.PackageManagers)

	// Module toggles are DWORD/string values named after the module
	for _, m := range KnownModules {
		enabled := cfg.Modules[m]
		loadBoolFromRegistry(key, "Module"+m, &enabled)
		cfg.Modules[m] = enabled
	}

	cfg.Source = "csp"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadStringFromRegistry loads a string value from registry if it exists.
func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		log.Printf("CSP: Loaded %s = %s", valueName, val)
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" and DWORD 1/0.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			log.Printf("CSP: Loaded %s = %t", valueName, parsed)
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
		log.Printf("CSP: Loaded %s = %t", valueName, val != 0)
	}
}

// loadIntFromRegistry loads an integer value from registry if it exists.
func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			log.Printf("CSP: Loaded %s = %d", valueName, parsed)
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
		log.Printf("CSP: Loaded %s = %d", valueName, int(val))
	}
}

// loadStringArrayFromRegistry reads REG_MULTI_SZ or a comma-separated string.
func loadStringArrayFromRegistry(key registry.Key, valueName string, target *[]string) {
	if vals, _, err := key.GetStringsValue(valueName); err == nil && len(vals) > 0 {
		if filtered := splitNonEmpty(vals); len(filtered) > 0 {
			*target = filtered
			log.Printf("CSP: Loaded %s = %v", valueName, filtered)
			return
		}
	}
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		if filtered := splitNonEmpty(strings.Split(val, ",")); len(filtered) > 0 {
			*target = filtered
			log.Printf("CSP: Loaded %s = %v", valueName, filtered)
		}
	}
}
