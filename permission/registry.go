package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Definition describes a permission the application knows about.
type Definition struct {
	Code        string
	Name        string
	Description string
}

// Registry is the set of permission codes an application declares at
// startup. Policies are checked against it so a mistyped code fails at wiring
// time instead of silently denying every request.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	frozen bool
}

// NewRegistry returns an empty, unfrozen Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def. Must be called before Freeze.
func (r *Registry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if def.Code == "" {
		return errors.New("permission code cannot be empty")
	}
	if _, exists := r.defs[def.Code]; exists {
		return fmt.Errorf("permission %q already registered", def.Code)
	}
	if def.Name == "" {
		def.Name = def.Code
	}
	r.defs[def.Code] = def
	return nil
}

// Lookup returns the definition for code.
func (r *Registry) Lookup(code string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[code]
	return def, ok
}

// Definitions returns every registered definition ordered by code.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Validate reports the first permission in p that was never registered. An
// empty registry accepts every policy.
func (r *Registry) Validate(p Policy) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.defs) == 0 {
		return nil
	}
	for _, code := range p.Permissions {
		if _, ok := r.defs[code]; !ok {
			return fmt.Errorf("permission not registered: %s", code)
		}
	}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
