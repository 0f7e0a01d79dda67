package expr

import (
	"slices"
	"sort"
	"strings"
)

// FeatureSet is an immutable set of enabled feature names.
type FeatureSet struct {
	names map[string]struct{}
}

// NewFeatureSet returns a set containing names. Blank names are ignored.
func NewFeatureSet(names ...string) FeatureSet {
	fs := FeatureSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			fs.names[n] = struct{}{}
		}
	}
	return fs
}

// ResolveFeatures starts from defaults and applies overrides in order.
// An override `name` enables a feature; `!name` disables it, including a
// default one.
func ResolveFeatures(defaults, overrides []string) FeatureSet {
	fs := NewFeatureSet(defaults...)
	for _, o := range overrides {
		o = strings.TrimSpace(o)
		if name, ok := strings.CutPrefix(o, "!"); ok {
			delete(fs.names, strings.TrimSpace(name))
			continue
		}
		if o != "" {
			fs.names[o] = struct{}{}
		}
	}
	return fs
}

// Has reports whether name is enabled.
func (f FeatureSet) Has(name string) bool {
	_, ok := f.names[name]
	return ok
}

// Names returns the enabled features, sorted.
func (f FeatureSet) Names() []string {
	out := make([]string, 0, len(f.names))
	for n := range f.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of enabled features.
func (f FeatureSet) Len() int {
	return len(f.names)
}

// Equal reports whether both sets hold the same names.
func (f FeatureSet) Equal(other FeatureSet) bool {
	return slices.Equal(f.Names(), other.Names())
}
