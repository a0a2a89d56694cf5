// pkg/regedit/regedit.go - reading and writing registry values behind a small interface.

package regedit

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrUnsupported is returned by the registry store on platforms without a registry.
var ErrUnsupported = errors.New("registry access is only available on Windows")

// Hive identifies a registry root key.
type Hive string

const (
	HKLM Hive = "HKLM"
	HKCU Hive = "HKCU"
)

// ValueType is the registry data type of a value.
type ValueType string

const (
	DWord  ValueType = "dword"
	QWord  ValueType = "qword"
	String ValueType = "string"
)

// Value is a typed registry value. Data holds the decimal form for integer types.
type Value struct {
	Type ValueType
	Data string
}

// Equal compares two values, treating integer data numerically.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case DWord, QWord:
		a, errA := strconv.ParseUint(v.Data, 0, 64)
		b, errB := strconv.ParseUint(o.Data, 0, 64)
		if errA != nil || errB != nil {
			return v.Data == o.Data
		}
		return a == b
	default:
		return v.Data == o.Data
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%s:%s", v.Type, v.Data)
}

// Store reads and writes registry values.
type Store interface {
	// Get returns the value and whether it exists.
	Get(hive Hive, path, name string) (Value, bool, error)
	Set(hive Hive, path, name string, v Value) error
}

// ParsePath splits a full key path such as `HKLM\SOFTWARE\Policies` into its
// hive and subkey. Long hive names are accepted.
func ParsePath(full string) (Hive, string, error) {
	full = strings.ReplaceAll(strings.TrimSpace(full), "/", `\`)
	root, rest, _ := strings.Cut(full, `\`)
	rest = strings.Trim(rest, `\`)
	var hive Hive
	switch strings.ToUpper(strings.TrimSuffix(root, ":")) {
	case "HKLM", "HKEY_LOCAL_MACHINE":
		hive = HKLM
	case "HKCU", "HKEY_CURRENT_USER":
		hive = HKCU
	default:
		return "", "", fmt.Errorf("unsupported registry hive %q in %q", root, full)
	}
	if rest == "" {
		return "", "", fmt.Errorf("registry path %q has no subkey", full)
	}
	return hive, rest, nil
}

// ParseType validates a value type name.
func ParseType(s string) (ValueType, error) {
	switch ValueType(strings.ToLower(strings.TrimSpace(s))) {
	case DWord:
		return DWord, nil
	case QWord:
		return QWord, nil
	case String, "sz":
		return String, nil
	default:
		return "", fmt.Errorf("unsupported registry value type %q", s)
	}
}

// NewValue builds a value, checking integer data fits its type.
func NewValue(t ValueType, data string) (Value, error) {
	data = strings.TrimSpace(data)
	switch t {
	case DWord:
		n, err := strconv.ParseUint(data, 0, 32)
		if err != nil {
			return Value{}, fmt.Errorf("dword value %q: %w", data, err)
		}
		return Value{Type: t, Data: strconv.FormatUint(n, 10)}, nil
	case QWord:
		n, err := strconv.ParseUint(data, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("qword value %q: %w", data, err)
		}
		return Value{Type: t, Data: strconv.FormatUint(n, 10)}, nil
	case String:
		return Value{Type: t, Data: data}, nil
	default:
		return Value{}, fmt.Errorf("unsupported registry value type %q", t)
	}
}

// MemoryStore is an in-memory Store used in tests and dry runs off Windows.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]Value
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]Value)}
}

func memKey(hive Hive, path, name string) string {
	return strings.ToLower(string(hive) + `\` + strings.Trim(path, `\`) + `\` + name)
}

// Get implements Store.
func (m *MemoryStore) Get(hive Hive, path, name string) (Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[memKey(hive, path, name)]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(hive Hive, path, name string, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[memKey(hive, path, name)] = v
	return nil
}

// Keys returns the stored value keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
