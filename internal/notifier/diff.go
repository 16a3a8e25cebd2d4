package notifier

import (
	"reflect"
	"sort"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

// Update pairs the two sides of a changed flag.
type Update struct {
	Before flagconf.Flag `json:"before"`
	After  flagconf.Flag `json:"after"`
}

// Diff describes what changed between two flag configurations.
type Diff struct {
	Added   map[string]flagconf.Flag `json:"added,omitempty"`
	Removed map[string]flagconf.Flag `json:"removed,omitempty"`
	Updated map[string]Update        `json:"updated,omitempty"`
}

// Compute diffs two flag sets. Either side may be nil.
func Compute(old, updated flagconf.FlagSet) Diff {
	d := Diff{
		Added:   map[string]flagconf.Flag{},
		Removed: map[string]flagconf.Flag{},
		Updated: map[string]Update{},
	}
	for key, flag := range updated {
		prev, ok := old[key]
		switch {
		case !ok:
			d.Added[key] = flag
		case !reflect.DeepEqual(prev, flag):
			d.Updated[key] = Update{Before: prev, After: flag}
		}
	}
	for key, flag := range old {
		if _, ok := updated[key]; !ok {
			d.Removed[key] = flag
		}
	}
	return d
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// Keys returns every changed flag key, sorted.
func (d Diff) Keys() []string {
	keys := make([]string, 0, len(d.Added)+len(d.Removed)+len(d.Updated))
	for k := range d.Added {
		keys = append(keys, k)
	}
	for k := range d.Removed {
		keys = append(keys, k)
	}
	for k := range d.Updated {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
