package conformance

import (
	"fmt"
	"sort"
)

// Registry is an immutable, versioned lookup from conformance class to the
// ordered list of check ids registered for it. It is built once at process
// start and passed explicitly to the orchestrator; there is no ambient
// mutable state.
type Registry struct {
	version string
	checks  map[Class][]string
}

// RegistryBuilder accumulates check registrations before the registry is
// sealed.
type RegistryBuilder struct {
	version string
	checks  map[Class][]string
}

// NewRegistryBuilder creates a builder for the given specification version.
func NewRegistryBuilder(version string) *RegistryBuilder {
	return &RegistryBuilder{
		version: version,
		checks:  make(map[Class][]string),
	}
}

// Register appends a check id to a class's battery. Registration order is
// preserved; chains that depend on earlier scenarios register later.
func (b *RegistryBuilder) Register(class Class, checkID string) *RegistryBuilder {
	b.checks[class] = append(b.checks[class], checkID)
	return b
}

// Build seals the registry. The builder must not be reused afterwards.
func (b *RegistryBuilder) Build() (*Registry, error) {
	for class, ids := range b.checks {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return nil, fmt.Errorf("duplicate check %q registered for class %q", id, class)
			}
			seen[id] = true
		}
	}

	checks := make(map[Class][]string, len(b.checks))
	for class, ids := range b.checks {
		cp := make([]string, len(ids))
		copy(cp, ids)
		checks[class] = cp
	}

	return &Registry{version: b.version, checks: checks}, nil
}

// Version returns the specification version the registry targets.
func (r *Registry) Version() string {
	return r.version
}

// Checks returns the ordered check ids for a class. The returned slice is a
// copy; the registry itself never changes after Build.
func (r *Registry) Checks(class Class) []string {
	ids, ok := r.checks[class]
	if !ok {
		return nil
	}
	cp := make([]string, len(ids))
	copy(cp, ids)
	return cp
}

// Classes returns all classes with registered checks in lexical order.
func (r *Registry) Classes() []Class {
	classes := make([]Class, 0, len(r.checks))
	for class := range r.checks {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Has reports whether any checks are registered for the class.
func (r *Registry) Has(class Class) bool {
	return len(r.checks[class]) > 0
}
