package cyberq

import (
	"sort"
	"strings"
)

// Store holds the latest decoded value for each sensor, keyed by canonical
// wire key. A Store returned from Client.Refresh is never mutated again;
// the client clones it before applying the next refresh.
type Store struct {
	registry *Registry
	values   map[string]Value
}

// NewStore creates an empty store backed by reg (DefaultRegistry when nil)
func NewStore(reg *Registry) *Store {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Store{registry: reg, values: make(map[string]Value)}
}

// Registry returns the descriptor table the store decodes with
func (s *Store) Registry() *Registry {
	return s.registry
}

// Accept decodes raw under key (or the sensor key aliases) and stores it
// under the canonical name, replacing any previous value.
func (s *Store) Accept(key, raw string) error {
	d, err := s.registry.Resolve(key)
	if err != nil {
		return err
	}
	v, err := d.Decode(raw)
	if err != nil {
		return err
	}
	s.values[d.Name] = v
	return nil
}

// Get returns the value stored for key. Aliases are resolved. A sensor the
// controller never reported yields a NotFound error.
func (s *Store) Get(key string) (Value, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	if name, ok := s.registry.ResolveAlias(key); ok {
		if v, ok := s.values[name]; ok {
			return v, nil
		}
	}
	return Value{}, NewNotFoundError(key)
}

// Has reports whether key has a stored value
func (s *Store) Has(key string) bool {
	_, err := s.Get(key)
	return err == nil
}

// Clone returns a deep copy; accepting into the copy never affects s
func (s *Store) Clone() *Store {
	c := &Store{registry: s.registry, values: make(map[string]Value, len(s.values))}
	for k, v := range s.values {
		v.desc = v.desc.Clone()
		c.values[k] = v
	}
	return c
}

// Equal reports whether both stores hold the same keys and values
func (s *Store) Equal(o *Store) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the stored values ordered by key
func (s *Store) Values() []Value {
	keys := s.Keys()
	out := make([]Value, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.values[k])
	}
	return out
}

// Len returns the number of stored values
func (s *Store) Len() int {
	return len(s.values)
}

// Map returns the decoded values keyed by wire key, for JSON rendering
func (s *Store) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v.Value()
	}
	return out
}

func (s *Store) String() string {
	var b strings.Builder
	for i, k := range s.Keys() {
		if i > 0 {
			b.WriteString("\n\t")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.values[k].String())
	}
	return b.String()
}

// ChangedSince returns the keys whose value differs from prev, including
// keys prev does not hold. A nil prev reports every key.
func (s *Store) ChangedSince(prev *Store) []string {
	var changed []string
	for _, k := range s.Keys() {
		if prev == nil {
			changed = append(changed, k)
			continue
		}
		old, ok := prev.values[k]
		if !ok || !old.Equal(s.values[k]) {
			changed = append(changed, k)
		}
	}
	return changed
}
