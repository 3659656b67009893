// Package memory is a mutex-guarded, in-process implementation of
// store.Store. It is used by tests and by authd when DATABASE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goAuthz/store"
)

// Store keeps every record in maps keyed by ID.
type Store struct {
	mu          sync.RWMutex
	users       map[string]store.User
	byUsername  map[string]string
	byEmail     map[string]string
	roles       map[string]store.Role
	permissions map[string]store.Permission
	rolePerms   map[string]map[string]struct{}
	userRoles   map[string]map[string]struct{}
	now         func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]store.User),
		byUsername:  make(map[string]string),
		byEmail:     make(map[string]string),
		roles:       make(map[string]store.Role),
		permissions: make(map[string]store.Permission),
		rolePerms:   make(map[string]map[string]struct{}),
		userRoles:   make(map[string]map[string]struct{}),
		now:         time.Now,
	}
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, in store.NewUser) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[in.Username]; ok {
		return nil, store.ErrDuplicateUsername
	}
	email := strings.ToLower(in.Email)
	if _, ok := s.byEmail[email]; ok {
		return nil, store.ErrDuplicateEmail
	}

	now := s.now().UTC()
	u := store.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		FullName:     in.FullName,
		IsActive:     in.IsActive,
		IsSuperuser:  in.IsSuperuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	s.byEmail[email] = u.ID
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd store.UserUpdate) (*store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Email != nil {
		oldEmail, newEmail := strings.ToLower(u.Email), strings.ToLower(*upd.Email)
		if newEmail != oldEmail {
			if _, taken := s.byEmail[newEmail]; taken {
				return nil, store.ErrDuplicateEmail
			}
			delete(s.byEmail, oldEmail)
			s.byEmail[newEmail] = id
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.IsSuperuser != nil {
		u.IsSuperuser = *upd.IsSuperuser
	}
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return &u, nil
}

func (s *Store) UserExists(ctx context.Context, lookup store.UserLookup) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lookup.Username != "" {
		_, ok := s.byUsername[lookup.Username]
		return ok, nil
	}
	if lookup.Email != "" {
		_, ok := s.byEmail[strings.ToLower(lookup.Email)]
		return ok, nil
	}
	return false, nil
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]store.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Role, 0, len(s.userRoles[userID]))
	for roleID := range s.userRoles[userID] {
		out = append(out, s.roles[roleID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListPermissionsForRole(ctx context.Context, roleID string) ([]store.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Permission, 0, len(s.rolePerms[roleID]))
	for permID := range s.rolePerms[roleID] {
		out = append(out, s.permissions[permID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListPermissionCodesForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for roleID := range s.userRoles[userID] {
		for permID := range s.rolePerms[roleID] {
			seen[s.permissions[permID].Code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context, opts store.ListOptions) ([]store.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = store.NormalizeListOptions(opts)
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]store.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Username < all[j].Username
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if opts.Offset >= len(all) {
		return []store.User{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(all))
	return all[opts.Offset:end], nil
}

func (s *Store) CreateRole(ctx context.Context, r store.Role) (*store.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if existing.Code == r.Code {
			return nil, store.ErrDuplicateCode
		}
	}
	r.ID = uuid.NewString()
	s.roles[r.ID] = r
	return &r, nil
}

func (s *Store) FindRoleByCode(ctx context.Context, code string) (*store.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.Code == code {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreatePermission(ctx context.Context, p store.Permission) (*store.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.permissions {
		if existing.Code == p.Code {
			return nil, store.ErrDuplicateCode
		}
	}
	p.ID = uuid.NewString()
	s.permissions[p.ID] = p
	return &p, nil
}

func (s *Store) FindPermissionByCode(ctx context.Context, code string) (*store.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) AssignPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return store.ErrNotFound
	}
	addEdge(s.rolePerms, roleID, permissionID)
	return nil
}

func (s *Store) AssignRoleToUser(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return store.ErrNotFound
	}
	addEdge(s.userRoles, userID, roleID)
	return nil
}

func (s *Store) RevokeRoleFromUser(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.userRoles[userID], roleID)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func addEdge(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(map[string]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}
