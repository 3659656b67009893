package permission

import (
	"slices"
	"sort"
)

// Mode selects how a Policy combines its required permissions.
type Mode int

const (
	// MatchAny allows when at least one required permission is granted.
	MatchAny Mode = iota
	// MatchAll allows only when every required permission is granted.
	MatchAll
)

func (m Mode) String() string {
	if m == MatchAll {
		return "all"
	}
	return "any"
}

// Policy is the requirement attached to a protected entry point.
//
// A zero Policy admits any active authenticated user. When Roles is set the
// user must also hold at least one of those role codes. Superusers bypass
// every Policy.
type Policy struct {
	Mode        Mode
	Permissions []string
	Roles       []string
}

// Any returns a match-any policy over perms.
func Any(perms ...string) Policy {
	return Policy{Mode: MatchAny, Permissions: slices.Clone(perms)}
}

// All returns a match-all policy over perms.
func All(perms ...string) Policy {
	return Policy{Mode: MatchAll, Permissions: slices.Clone(perms)}
}

// Authenticated returns the policy that only requires a valid access token.
func Authenticated() Policy {
	return Policy{}
}

// WithRoles returns a copy of p that also requires one of roles.
func (p Policy) WithRoles(roles ...string) Policy {
	out := p
	out.Permissions = slices.Clone(p.Permissions)
	out.Roles = append(slices.Clone(p.Roles), roles...)
	return out
}

// NeedsPermissions reports whether the policy has permission requirements.
func (p Policy) NeedsPermissions() bool {
	return len(p.Permissions) > 0
}

// NeedsRoles reports whether evaluating the policy needs the user's roles.
func (p Policy) NeedsRoles() bool {
	return len(p.Roles) > 0
}

// Allows evaluates p against the user's granted permission codes and role codes.
func (p Policy) Allows(granted, roles Set) bool {
	if p.NeedsRoles() && !roles.HasAny(p.Roles) {
		return false
	}
	if !p.NeedsPermissions() {
		return true
	}
	if p.Mode == MatchAll {
		return granted.HasAll(p.Permissions)
	}
	return granted.HasAny(p.Permissions)
}

// Set is an unordered collection of codes.
type Set map[string]struct{}

// NewSet builds a Set from codes, ignoring empty strings.
func NewSet(codes ...string) Set {
	s := make(Set, len(codes))
	for _, c := range codes {
		if c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

// Has reports whether code is in s.
func (s Set) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// HasAny reports whether s contains at least one of codes.
func (s Set) HasAny(codes []string) bool {
	for _, c := range codes {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// HasAll reports whether s contains every one of codes.
func (s Set) HasAll(codes []string) bool {
	for _, c := range codes {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Sorted returns the members of s in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
