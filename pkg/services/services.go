// pkg/services/services.go - Windows service state queries and start-mode changes.

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/windowsadmins/winmaint/pkg/execx"
	"github.com/windowsadmins/winmaint/pkg/logging"
)

// Start modes.
const (
	StartDisabled  = "disabled"
	StartManual    = "manual"
	StartAutomatic = "automatic"
)

var (
	// ErrNotFound means the service is not installed.
	ErrNotFound = errors.New("service not found")
	// ErrUnsupported is returned where the service control manager is unavailable.
	ErrUnsupported = errors.New("service control is only supported on Windows")
)

// sc.exe exit code for "The service has not been started."
const scServiceNotActive = 1062

// Service is the observed state of one service.
type Service struct {
	Name        string
	DisplayName string
	StartMode   string // disabled, manual, automatic, boot, system
	State       string // running, stopped, ...
}

// Running reports whether the service is currently running.
func (s Service) Running() bool { return s.State == "running" }

// Controller reads and changes services.
type Controller interface {
	Query(ctx context.Context, name string) (Service, error)
	SetStartMode(ctx context.Context, name, mode string) error
	Stop(ctx context.Context, name string) error
}

// win32Service mirrors the Win32_Service WMI class fields we read.
type win32Service struct {
	Name        string
	DisplayName string
	StartMode   string
	State       string
}

// SCController queries services through WMI and changes them with sc.exe.
type SCController struct {
	Runner execx.Runner
	lookup func(name string) (*win32Service, error)
}

// NewController returns the system service controller.
func NewController(r execx.Runner) *SCController {
	return &SCController{Runner: r, lookup: queryService}
}

// Query returns the current state of the named service.
func (c *SCController) Query(ctx context.Context, name string) (Service, error) {
	if err := ctx.Err(); err != nil {
		return Service{}, err
	}
	raw, err := c.lookup(name)
	if err != nil {
		return Service{}, err
	}
	if raw == nil {
		return Service{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return Service{
		Name:        raw.Name,
		DisplayName: raw.DisplayName,
		StartMode:   NormalizeStartMode(raw.StartMode),
		State:       strings.ToLower(raw.State),
	}, nil
}

// SetStartMode changes the start type of the named service.
func (c *SCController) SetStartMode(ctx context.Context, name, mode string) error {
	var sc string
	switch NormalizeStartMode(mode) {
	case StartDisabled:
		sc = "disabled"
	case StartManual:
		sc = "demand"
	case StartAutomatic:
		sc = "auto"
	default:
		return fmt.Errorf("unsupported start mode %q", mode)
	}
	if _, err := c.Runner.Run(ctx, "sc.exe", "config", name, "start=", sc); err != nil {
		return fmt.Errorf("failed to set start mode of %s: %w", name, err)
	}
	return nil
}

// Stop stops the named service. Stopping a service that is not running succeeds.
func (c *SCController) Stop(ctx context.Context, name string) error {
	_, err := c.Runner.Run(ctx, "sc.exe", "stop", name)
	if err != nil {
		if execx.ExitCode(err) == scServiceNotActive {
			logging.Debug("Service already stopped", "service", name)
			return nil
		}
		return fmt.Errorf("failed to stop %s: %w", name, err)
	}
	return nil
}

// NormalizeStartMode maps WMI and config spellings to the lowercase start modes.
func NormalizeStartMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "auto", "automatic", "automatic (delayed start)":
		return StartAutomatic
	case "manual", "demand":
		return StartManual
	case "disabled":
		return StartDisabled
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}

// MemoryController is an in-memory Controller.
type MemoryController struct {
	mu       sync.Mutex
	services map[string]Service
	// Fail makes every change to the listed service names fail.
	Fail map[string]error
}

// NewMemoryController returns a controller holding the given services.
func NewMemoryController(svcs ...Service) *MemoryController {
	m := &MemoryController{services: make(map[string]Service), Fail: make(map[string]error)}
	for _, s := range svcs {
		m.services[strings.ToLower(s.Name)] = s
	}
	return m
}

func (m *MemoryController) Query(ctx context.Context, name string) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[strings.ToLower(name)]
	if !ok {
		return Service{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return s, nil
}

func (m *MemoryController) SetStartMode(ctx context.Context, name, mode string) error {
	return m.update(name, func(s *Service) { s.StartMode = NormalizeStartMode(mode) })
}

func (m *MemoryController) Stop(ctx context.Context, name string) error {
	return m.update(name, func(s *Service) { s.State = "stopped" })
}

func (m *MemoryController) update(name string, fn func(*Service)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[name]; err != nil {
		return err
	}
	key := strings.ToLower(name)
	s, ok := m.services[key]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	fn(&s)
	m.services[key] = s
	return nil
}

// Names returns the known service names in sorted order.
func (m *MemoryController) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.services))
	for _, s := range m.services {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
