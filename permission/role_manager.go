package permission

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// RoleTemplate is a role definition together with the permission codes it grants.
type RoleTemplate struct {
	Code        string
	Name        string
	Description string
	Permissions []string
}

// RoleManager holds role templates built on a Registry. The engine uses them
// to provision roles into the credential store.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]RoleTemplate
	frozen bool
}

// NewRoleManager returns a RoleManager that validates permissions against registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]RoleTemplate),
	}
}

// RegisterRole adds a template. Every permission must already be registered.
func (rm *RoleManager) RegisterRole(tpl RoleTemplate) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if tpl.Code == "" {
		return errors.New("role code empty")
	}
	if _, exists := rm.roles[tpl.Code]; exists {
		return fmt.Errorf("role %q already registered", tpl.Code)
	}
	for _, perm := range tpl.Permissions {
		if _, ok := rm.registry.Lookup(perm); !ok {
			return fmt.Errorf("permission not registered: %s", perm)
		}
	}
	if tpl.Name == "" {
		tpl.Name = tpl.Code
	}
	tpl.Permissions = slices.Clone(tpl.Permissions)
	rm.roles[tpl.Code] = tpl
	return nil
}

// Role returns the template for code.
func (rm *RoleManager) Role(code string) (RoleTemplate, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	tpl, ok := rm.roles[code]
	tpl.Permissions = slices.Clone(tpl.Permissions)
	return tpl, ok
}

// Roles returns every template ordered by code.
func (rm *RoleManager) Roles() []RoleTemplate {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]RoleTemplate, 0, len(rm.roles))
	for _, tpl := range rm.roles {
		tpl.Permissions = slices.Clone(tpl.Permissions)
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Freeze prevents further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of templates.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
