//go:build !windows

package regedit

type unsupportedStore struct{}

// NewStore returns a Store that fails every call outside Windows.
func NewStore() Store {
	return unsupportedStore{}
}

func (unsupportedStore) Get(Hive, string, string) (Value, bool, error) {
	return Value{}, false, ErrUnsupported
}

func (unsupportedStore) Set(Hive, string, string, Value) error {
	return ErrUnsupported
}
