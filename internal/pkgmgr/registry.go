package pkgmgr

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Builtin returns a fresh instance of every built-in adapter.
func Builtin() []Adapter {
	return []Adapter{
		NPM(), Yarn(), PNPM(),
		Pip(), Poetry(),
		Go(),
		NuGet(), Maven(), Gradle(),
	}
}

// Registry resolves manager names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	builtin  map[string]bool
}

// NewRegistry creates a Registry holding the built-in adapters plus extra.
// An extra adapter with a built-in name replaces it.
func NewRegistry(extra ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter), builtin: make(map[string]bool)}
	for _, a := range Builtin() {
		r.adapters[a.Name()] = a
		r.builtin[a.Name()] = true
	}
	for _, a := range extra {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds an adapter. Registering a name twice is an error unless the
// existing entry is built-in.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.adapters[name]; exists && !r.builtin[name] {
		return fmt.Errorf("package manager '%s' already registered", name)
	}
	r.adapters[name] = a
	delete(r.builtin, name)
	return nil
}

// Lookup returns the adapter for name; the empty name selects DefaultManager.
func (r *Registry) Lookup(name string) (Adapter, error) {
	if name == "" {
		name = DefaultManager
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w '%s' (known: %s)", ErrUnknownManager, name, strings.Join(r.namesLocked(), ", "))
	}
	return a, nil
}

// Names returns every registered manager name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCustom reports whether name was registered in place of, or in addition
// to, the built-ins.
func (r *Registry) IsCustom(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, defined := r.adapters[name]
	return defined && !r.builtin[name]
}
