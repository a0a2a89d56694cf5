//go:build windows

package regedit

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sys/windows/registry"
)

type windowsStore struct{}

// NewStore returns the Store backed by the Windows registry.
func NewStore() Store {
	return windowsStore{}
}

func rootKey(hive Hive) (registry.Key, error) {
	switch hive {
	case HKLM:
		return registry.LOCAL_MACHINE, nil
	case HKCU:
		return registry.CURRENT_USER, nil
	default:
		return 0, fmt.Errorf("unsupported registry hive %q", hive)
	}
}

func (windowsStore) Get(hive Hive, path, name string) (Value, bool, error) {
	root, err := rootKey(hive)
	if err != nil {
		return Value{}, false, err
	}
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return Value{}, false, nil
		}
		return Value{}, false, fmt.Errorf("opening %s\\%s: %w", hive, path, err)
	}
	defer k.Close()

	_, valType, err := k.GetValue(name, nil)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return Value{}, false, nil
		}
		return Value{}, false, fmt.Errorf("reading %s\\%s\\%s: %w", hive, path, name, err)
	}

	switch valType {
	case registry.DWORD, registry.QWORD:
		n, _, err := k.GetIntegerValue(name)
		if err != nil {
			return Value{}, false, err
		}
		t := DWord
		if valType == registry.QWORD {
			t = QWord
		}
		return Value{Type: t, Data: strconv.FormatUint(n, 10)}, true, nil
	case registry.SZ, registry.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Type: String, Data: s}, true, nil
	default:
		return Value{}, true, fmt.Errorf("value %s\\%s\\%s has unsupported type %d", hive, path, name, valType)
	}
}

func (windowsStore) Set(hive Hive, path, name string, v Value) error {
	root, err := rootKey(hive)
	if err != nil {
		return err
	}
	k, _, err := registry.CreateKey(root, path, registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return fmt.Errorf("creating %s\\%s: %w", hive, path, err)
	}
	defer k.Close()

	switch v.Type {
	case DWord:
		n, err := strconv.ParseUint(v.Data, 10, 32)
		if err != nil {
			return err
		}
		return k.SetDWordValue(name, uint32(n))
	case QWord:
		n, err := strconv.ParseUint(v.Data, 10, 64)
		if err != nil {
			return err
		}
		return k.SetQWordValue(name, n)
	case String:
		return k.SetStringValue(name, v.Data)
	default:
		return fmt.Errorf("unsupported registry value type %q", v.Type)
	}
}
