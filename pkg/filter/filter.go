// pkg/filter/filter.go - Package for selecting which numbered tasks run

package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// TaskFilter holds the --tasks selection
type TaskFilter struct {
	raw string
}

// NewTaskFilter creates a new TaskFilter instance
func NewTaskFilter() *TaskFilter {
	return &TaskFilter{}
}

// RegisterFlags registers the --tasks flag on fs
func (f *TaskFilter) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&f.raw,
		"tasks",
		"",
		"Run only the given task numbers, as a comma-separated list with ranges (e.g. 2,4-6).",
	)
}

// Set sets the selection programmatically
func (f *TaskFilter) Set(raw string) {
	f.raw = raw
}

// HasFilter returns true if a selection was given
func (f *TaskFilter) HasFilter() bool {
	return strings.TrimSpace(f.raw) != ""
}

// Select returns the selected task numbers, sorted and unique. With no
// selection every valid number is returned.
func (f *TaskFilter) Select(valid []int) ([]int, error) {
	if !f.HasFilter() {
		out := append([]int(nil), valid...)
		sort.Ints(out)
		return out, nil
	}
	return ParseSelection(f.raw, valid)
}

// ParseSelection parses "1,3-5" into task numbers and checks each is in valid.
func ParseSelection(raw string, valid []int) ([]int, error) {
	allowed := make(map[int]bool, len(valid))
	for _, n := range valid {
		allowed[n] = true
	}

	seen := make(map[int]bool)
	var out []int
	add := func(n int) error {
		if !allowed[n] {
			return fmt.Errorf("unknown task number %d", n)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
		return nil
	}

	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid task number %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid task range %q", part)
			}
			if end < start {
				return nil, fmt.Errorf("invalid task range %q: end is before start", part)
			}
		}
		for n := start; n <= end; n++ {
			if err := add(n); err != nil {
				return nil, err
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no tasks selected in %q", raw)
	}
	sort.Ints(out)
	return out, nil
}
