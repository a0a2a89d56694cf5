// pkg/diff/diff.go - the shared diff list every action module works from.
//
// A module only ever acts on the items of a List. Lists are ordered by the
// position of their target in the configured list and hold at most one
// entry per detected item.

package diff

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/windowsadmins/winmaint/pkg/inventory"
	"github.com/windowsadmins/winmaint/pkg/logging"
)

// Reason says why an item is on a diff list.
type Reason string

const (
	ReasonMatched  Reason = "matched"  // detected and listed as a removal target
	ReasonMissing  Reason = "missing"  // listed but not detected
	ReasonOutdated Reason = "outdated" // detected below the listed minimum version
	ReasonDrift    Reason = "drift"    // detected in a state other than the desired one
)

// Target is one configured entry.
type Target struct {
	ID         string // may contain * and ? wildcards for Intersect
	Name       string
	Source     string // restricts matching to detected items of this source when set
	MinVersion string
	Desired    string // desired state for Drift
}

// Item is one entry of a diff list.
type Item struct {
	Target   Target
	Detected *inventory.Item // nil for ReasonMissing
	Reason   Reason
	order    int
}

// ID is the identifier a module acts on: the detected ID when there is one.
func (i Item) ID() string {
	if i.Detected != nil {
		return i.Detected.ID
	}
	return i.Target.ID
}

// Index is the position of the item's target in the configured list.
func (i Item) Index() int { return i.order }

// Source is the detected source, or the target's source when nothing was detected.
func (i Item) Source() string {
	if i.Detected != nil && i.Detected.Source != "" {
		return i.Detected.Source
	}
	return i.Target.Source
}

func (i Item) key() string {
	if i.Detected != nil {
		return "detected|" + strings.ToLower(i.Detected.Source) + "|" + strings.ToLower(i.Detected.ID)
	}
	return "target|" + strings.ToLower(i.Target.Source) + "|" + strings.ToLower(i.Target.ID)
}

// List is an ordered diff list.
type List []Item

// IDs returns the identifiers in list order.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i, it := range l {
		ids[i] = it.ID()
	}
	return ids
}

// Contains reports whether id (case-insensitive) is on the list.
func (l List) Contains(id string) bool {
	for _, it := range l {
		if strings.EqualFold(it.ID(), id) {
			return true
		}
	}
	return false
}

// Intersect returns the detected items that match a target.
func Intersect(detected []inventory.Item, targets []Target) List {
	var out List
	for ti, t := range targets {
		for di := range detected {
			d := &detected[di]
			if matchTarget(t, d) {
				out = append(out, Item{Target: t, Detected: d, Reason: ReasonMatched, order: ti})
			}
		}
	}
	return normalize(out)
}

// Missing returns the targets no detected item matches.
func Missing(targets []Target, detected []inventory.Item) List {
	var out List
	for ti, t := range targets {
		found := false
		for di := range detected {
			if matchTarget(t, &detected[di]) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, Item{Target: t, Reason: ReasonMissing, order: ti})
		}
	}
	return normalize(out)
}

// Outdated returns detected items whose version is below their target's
// MinVersion. Unparseable versions are logged and left alone.
func Outdated(targets []Target, detected []inventory.Item) List {
	var out List
	for ti, t := range targets {
		if t.MinVersion == "" {
			continue
		}
		want, err := version.NewVersion(t.MinVersion)
		if err != nil {
			logging.Warn("Invalid minimum version", "target", t.ID, "min_version", t.MinVersion, "error", err)
			continue
		}
		for di := range detected {
			d := &detected[di]
			if !matchTarget(t, d) {
				continue
			}
			have, err := version.NewVersion(d.Version)
			if err != nil {
				logging.Debug("Unparseable installed version", "item", d.ID, "version", d.Version, "error", err)
				continue
			}
			if have.LessThan(want) {
				out = append(out, Item{Target: t, Detected: d, Reason: ReasonOutdated, order: ti})
			}
		}
	}
	return normalize(out)
}

// Drift returns targets whose detected item is absent or whose State differs
// from Desired. Targets are matched to detected items by exact ID.
func Drift(targets []Target, detected []inventory.Item) List {
	byID := make(map[string]*inventory.Item, len(detected))
	for i := range detected {
		byID[strings.ToLower(detected[i].ID)] = &detected[i]
	}
	var out List
	for ti, t := range targets {
		d, ok := byID[strings.ToLower(t.ID)]
		if ok && strings.EqualFold(d.State, t.Desired) {
			continue
		}
		item := Item{Target: t, Reason: ReasonDrift, order: ti}
		if ok {
			item.Detected = d
		}
		out = append(out, item)
	}
	return normalize(out)
}

// Merge concatenates lists, keeping the first entry for each item, and
// re-sorts by target order.
func Merge(lists ...List) List {
	var out List
	for _, l := range lists {
		out = append(out, l...)
	}
	return normalize(out)
}

func normalize(l List) List {
	seen := make(map[string]bool, len(l))
	out := make(List, 0, len(l))
	for _, it := range l {
		k := it.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

func matchTarget(t Target, d *inventory.Item) bool {
	if t.Source != "" && d.Source != "" && !strings.EqualFold(t.Source, d.Source) {
		return false
	}
	return Match(t.ID, d.ID) || (d.Name != "" && Match(t.ID, d.Name))
}

// Match reports whether name matches pattern case-insensitively. In pattern,
// * matches any run of characters and ? matches exactly one. Backslashes are
// literal so registry and ARP identifiers can be used as patterns.
func Match(pattern, name string) bool {
	p := []rune(strings.ToLower(pattern))
	n := []rune(strings.ToLower(name))

	pi, ni := 0, 0
	star, mark := -1, 0
	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
