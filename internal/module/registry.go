package module

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/steveyegge/inspector/internal/version"
)

// ErrUnknownModule is returned by Select for names nobody registered.
var ErrUnknownModule = errors.New("unknown module")

// Registry holds the modules available to a run, keyed by name. Metadata is read
// once at registration.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]entry
}

type entry struct {
	module Module
	meta   Metadata
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]entry)}
}

// Register adds m. Names must be unique and declared ranges well formed.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return errors.New("cannot register nil module")
	}
	meta, err := Describe(m)
	if err != nil {
		return err
	}
	if strings.TrimSpace(meta.Name) == "" {
		return errors.New("module name is required")
	}
	for _, rng := range meta.Compatibility {
		if err := rng.Validate(); err != nil {
			return fmt.Errorf("module %q: %w", meta.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[meta.Name]; exists {
		return fmt.Errorf("module %q already registered", meta.Name)
	}
	r.modules[meta.Name] = entry{module: m, meta: meta}
	return nil
}

// Get returns a registered module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.modules[name]
	return e.module, ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// All returns every registered module in catalog order.
func (r *Registry) All() []Module {
	return modulesOf(r.entries())
}

// entries returns a snapshot of the registry in catalog order.
func (r *Registry) entries() []entry {
	r.mu.RLock()
	all := make([]entry, 0, len(r.modules))
	for _, e := range r.modules {
		all = append(all, e)
	}
	r.mu.RUnlock()

	sortEntries(all)
	return all
}

func modulesOf(entries []entry) []Module {
	out := make([]Module, len(entries))
	for i, e := range entries {
		out[i] = e.module
	}
	return out
}

func sortEntries(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return less(entries[i].meta, entries[j].meta)
	})
}

// ListCompatible returns the modules that may run against v, in catalog order.
func (r *Registry) ListCompatible(v version.Version) []Module {
	compatible, _ := r.Partition(v)
	return compatible
}

// Exclusion is a module left out of a run by the version gate.
type Exclusion struct {
	Metadata Metadata `json:"module" yaml:"module"`
	NearMiss bool     `json:"nearMiss,omitempty" yaml:"nearMiss,omitempty"`
}

// Partition splits the catalog into modules compatible with v and those excluded.
// Both lists are in catalog order.
func (r *Registry) Partition(v version.Version) ([]Module, []Exclusion) {
	var (
		compatible []Module
		excluded   []Exclusion
	)
	for _, e := range r.entries() {
		if e.meta.Supports(v) {
			compatible = append(compatible, e.module)
			continue
		}
		excluded = append(excluded, Exclusion{Metadata: e.meta, NearMiss: e.meta.NearMiss(v)})
	}
	return compatible, excluded
}

// Partition splits modules by compatibility with v, preserving their order. A
// module whose Describe fails is kept as compatible so the run reports it.
func Partition(modules []Module, v version.Version) ([]Module, []Exclusion) {
	var (
		compatible []Module
		excluded   []Exclusion
	)
	for _, m := range modules {
		meta, err := Describe(m)
		if err != nil || meta.Supports(v) {
			compatible = append(compatible, m)
			continue
		}
		excluded = append(excluded, Exclusion{Metadata: meta, NearMiss: meta.NearMiss(v)})
	}
	return compatible, excluded
}

// Select returns the named modules in catalog order. Duplicate names are collapsed;
// any unknown name fails the whole selection.
func (r *Registry) Select(names []string) ([]Module, error) {
	r.mu.RLock()
	var (
		picked  []entry
		unknown []string
		seen    = make(map[string]bool, len(names))
	)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		e, ok := r.modules[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		picked = append(picked, e)
	}
	r.mu.RUnlock()

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, strings.Join(unknown, ", "))
	}
	sortEntries(picked)
	return modulesOf(picked), nil
}

// Sort orders modules by category, then name; case-insensitively first so the
// order is stable for names differing only in case.
func Sort(modules []Module) {
	entries := make([]entry, len(modules))
	for i, m := range modules {
		meta, _ := Describe(m)
		entries[i] = entry{module: m, meta: meta}
	}
	sortEntries(entries)
	copy(modules, modulesOf(entries))
}

func less(a, b Metadata) bool {
	if c := compareFold(a.Category, b.Category); c != 0 {
		return c < 0
	}
	if c := compareFold(a.Name, b.Name); c != 0 {
		return c < 0
	}
	return a.Name < b.Name
}

func compareFold(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
