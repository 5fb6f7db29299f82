package breaks

import (
	"fmt"
	"sort"
)

// Registry maps category names to capacity limits. Read-only after
// construction, so it needs no locking.
type Registry struct {
	capacities map[string]int
}

// NewRegistry builds a registry from the configured categories.
// Duplicate names and negative capacities are rejected.
func NewRegistry(categories []Category) (*Registry, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one break category is required")
	}

	capacities := make(map[string]int, len(categories))
	for _, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category name must not be empty")
		}
		if c.Capacity < 0 {
			return nil, fmt.Errorf("category %q: capacity must be >= 0, got %d", c.Name, c.Capacity)
		}
		if _, dup := capacities[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		capacities[c.Name] = c.Capacity
	}

	return &Registry{capacities: capacities}, nil
}

// CapacityOf returns the concurrency limit for a category.
// Returns ErrUnknownCategory for unregistered names.
func (r *Registry) CapacityOf(name string) (int, error) {
	capacity, ok := r.capacities[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return capacity, nil
}

// Names returns all registered category names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.capacities))
	for name := range r.capacities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
