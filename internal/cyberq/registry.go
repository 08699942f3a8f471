package cyberq

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps wire keys and aliases to descriptors. It is never mutated
// after construction and may be shared between clients.
type Registry struct {
	byName  map[string]*Descriptor
	byAlias map[string]*Descriptor
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// NewRegistry builds a registry, rejecting duplicate names or aliases and
// writable descriptors without a page.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Descriptor, len(descriptors)),
		byAlias: make(map[string]*Descriptor),
	}
	for _, d := range descriptors {
		d := d.Clone()
		if d.Name == "" {
			return nil, fmt.Errorf("descriptor with empty name")
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate sensor %s", d.Name)
		}
		if _, ok := codecs[d.Kind]; !ok {
			return nil, fmt.Errorf("sensor %s: unknown kind %s", d.Name, d.Kind)
		}
		if !d.ReadOnly && d.Page == PageNone {
			return nil, fmt.Errorf("sensor %s is writable but has no page", d.Name)
		}
		if d.Kind == KindEnum && len(d.Values) == 0 {
			return nil, fmt.Errorf("sensor %s: enum without options", d.Name)
		}
		r.byName[d.Name] = &d
		if d.Alias != "" {
			if _, exists := r.byAlias[d.Alias]; exists {
				return nil, fmt.Errorf("duplicate alias %s on %s", d.Alias, d.Name)
			}
			r.byAlias[d.Alias] = &d
		}
	}
	for alias, d := range r.byAlias {
		if other, clash := r.byName[alias]; clash {
			return nil, fmt.Errorf("alias %s of %s shadows sensor %s", alias, d.Name, other.Name)
		}
	}
	return r, nil
}

// DefaultRegistry returns the process-wide CyberQ sensor table
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := NewRegistry(sensorTable)
		if err != nil {
			panic(fmt.Sprintf("cyberq: invalid sensor table: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Lookup returns the descriptor registered under the exact wire key
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.byName[key]
	if !ok {
		return Descriptor{}, false
	}
	return d.Clone(), true
}

// ResolveAlias returns the canonical key for an alias
func (r *Registry) ResolveAlias(alias string) (string, bool) {
	d, ok := r.byAlias[alias]
	if !ok {
		return "", false
	}
	return d.Name, true
}

// Resolve finds a descriptor by exact key, then by alias
func (r *Registry) Resolve(key string) (Descriptor, error) {
	if d, ok := r.Lookup(key); ok {
		return d, nil
	}
	if name, ok := r.ResolveAlias(key); ok {
		return r.byName[name].Clone(), nil
	}
	return Descriptor{}, NewDecodeError(key, "not a known sensor", ErrUnknownKey)
}

// Names returns every canonical key in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of descriptors
func (r *Registry) Len() int {
	return len(r.byName)
}
