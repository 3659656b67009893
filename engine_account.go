package goAuthz

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MrEthical07/goAuthz/internal/flows"
	"github.com/MrEthical07/goAuthz/store"
)

var (
	// ErrAdminUnsupported is returned by the RBAC administration methods when
	// the configured store does not implement store.Admin.
	ErrAdminUnsupported = errors.New("store does not support administration")
	// ErrRoleNotFound is returned when a role or permission code is unknown.
	ErrRoleNotFound = errors.New("role or permission not found")
)

// GetUser returns the user with id.
func (e *Engine) GetUser(ctx context.Context, id string) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	u, err := e.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, e.storeErr("get user", err)
	}
	return u, nil
}

// ListUsers pages through users ordered by creation time.
func (e *Engine) ListUsers(ctx context.Context, opts ListOptions) ([]User, error) {
	admin, err := e.admin()
	if err != nil {
		return nil, err
	}
	users, err := admin.ListUsers(ctx, store.NormalizeListOptions(opts))
	if err != nil {
		return nil, e.storeErr("list users", err)
	}
	return users, nil
}

// ActivateUser marks userID active.
func (e *Engine) ActivateUser(ctx context.Context, userID string) (*User, error) {
	return e.setActive(ctx, userID, true)
}

// DeactivateUser marks userID inactive. Outstanding tokens stop authorizing
// on their next use.
func (e *Engine) DeactivateUser(ctx context.Context, userID string) (*User, error) {
	return e.setActive(ctx, userID, false)
}

func (e *Engine) setActive(ctx context.Context, userID string, active bool) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.SetActive(ctx, userID, active)
	if err := e.accountErr("set active", res); err != nil {
		return nil, err
	}
	if res.Changed {
		e.metricInc(MetricAccountStatusChange)
		e.emitAudit(ctx, auditEventAccountStatusChange, true, res.User.ID, res.User.Username, nil, func() map[string]string {
			return map[string]string{"active": strconv.FormatBool(active)}
		})
	}
	return res.User, nil
}

// UpdateProfile applies the non-nil fields of upd to userID.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.UpdateProfile(ctx, userID, flows.ProfileChange{
		Email:    upd.Email,
		FullName: upd.FullName,
		Password: upd.Password,
	})
	if err := e.accountErr("update profile", res); err != nil {
		e.emitAudit(ctx, auditEventProfileUpdate, false, userID, "", err, nil)
		return nil, err
	}
	e.emitAudit(ctx, auditEventProfileUpdate, true, res.User.ID, res.User.Username, nil, func() map[string]string {
		return map[string]string{"password_changed": strconv.FormatBool(upd.Password != nil)}
	})
	return res.User, nil
}

func (e *Engine) accountErr(op string, res flows.AccountResult) error {
	switch res.Failure {
	case flows.AccountFailureNone:
		return nil
	case flows.AccountFailureNotFound:
		return ErrUserNotFound
	case flows.AccountFailureInvalidInput:
		return errors.Join(ErrInvalidInput, res.Err)
	case flows.AccountFailureEmailTaken:
		return ErrEmailTaken
	default:
		e.logger.Error("goAuthz: "+op+" failed", "error", res.Err)
		return ErrInternal
	}
}

/*
====================================
RBAC ADMINISTRATION
====================================
*/

// CreateRole stores a new role.
func (e *Engine) CreateRole(ctx context.Context, r Role) (*Role, error) {
	admin, err := e.admin()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Code) == "" {
		return nil, ErrInvalidInput
	}
	out, err := admin.CreateRole(ctx, r)
	if err != nil {
		return nil, e.storeErr("create role", err)
	}
	return out, nil
}

// CreatePermission stores a new permission.
func (e *Engine) CreatePermission(ctx context.Context, p Permission) (*Permission, error) {
	admin, err := e.admin()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Code) == "" {
		return nil, ErrInvalidInput
	}
	out, err := admin.CreatePermission(ctx, p)
	if err != nil {
		return nil, e.storeErr("create permission", err)
	}
	return out, nil
}

// GrantPermission adds the permission permCode to the role roleCode. Cached
// permission sets are purged because any number of users may hold the role.
func (e *Engine) GrantPermission(ctx context.Context, roleCode, permCode string) error {
	admin, err := e.admin()
	if err != nil {
		return err
	}
	role, err := admin.FindRoleByCode(ctx, roleCode)
	if err != nil {
		return e.lookupErr("find role", err)
	}
	perm, err := admin.FindPermissionByCode(ctx, permCode)
	if err != nil {
		return e.lookupErr("find permission", err)
	}
	if err := admin.AssignPermissionToRole(ctx, role.ID, perm.ID); err != nil {
		return e.storeErr("assign permission", err)
	}
	e.permCache.Purge()
	return nil
}

// AssignRole gives userID the role roleCode.
func (e *Engine) AssignRole(ctx context.Context, userID, roleCode string) error {
	admin, err := e.admin()
	if err != nil {
		return err
	}
	role, err := admin.FindRoleByCode(ctx, roleCode)
	if err != nil {
		return e.lookupErr("find role", err)
	}
	if err := admin.AssignRoleToUser(ctx, userID, role.ID); err != nil {
		return e.storeErr("assign role", err)
	}
	e.InvalidatePermissions(userID)
	e.emitAudit(ctx, auditEventRoleAssigned, true, userID, "", nil, func() map[string]string {
		return map[string]string{"role": roleCode}
	})
	return nil
}

// RevokeRole removes roleCode from userID.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleCode string) error {
	admin, err := e.admin()
	if err != nil {
		return err
	}
	role, err := admin.FindRoleByCode(ctx, roleCode)
	if err != nil {
		return e.lookupErr("find role", err)
	}
	if err := admin.RevokeRoleFromUser(ctx, userID, role.ID); err != nil {
		return e.storeErr("revoke role", err)
	}
	e.InvalidatePermissions(userID)
	e.emitAudit(ctx, auditEventRoleRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"role": roleCode}
	})
	return nil
}

// SeedRoles provisions every declared permission and role template into the
// store. Existing rows are reused, so it is safe to run on every start.
func (e *Engine) SeedRoles(ctx context.Context) error {
	admin, err := e.admin()
	if err != nil {
		return err
	}

	permIDs := make(map[string]string, e.registry.Count())
	for _, def := range e.registry.Definitions() {
		p, err := admin.FindPermissionByCode(ctx, def.Code)
		if errors.Is(err, store.ErrNotFound) {
			p, err = admin.CreatePermission(ctx, Permission{Code: def.Code, Name: def.Name, Description: def.Description})
		}
		if err != nil {
			return e.storeErr("seed permission", err)
		}
		permIDs[def.Code] = p.ID
	}

	for _, tpl := range e.roleManager.Roles() {
		r, err := admin.FindRoleByCode(ctx, tpl.Code)
		if errors.Is(err, store.ErrNotFound) {
			r, err = admin.CreateRole(ctx, Role{Code: tpl.Code, Name: tpl.Name, Description: tpl.Description})
		}
		if err != nil {
			return e.storeErr("seed role", err)
		}
		for _, code := range tpl.Permissions {
			if err := admin.AssignPermissionToRole(ctx, r.ID, permIDs[code]); err != nil {
				return e.storeErr("seed role permission", err)
			}
		}
	}

	e.permCache.Purge()
	return nil
}

// EnsureSuperuser makes sure an active superuser named in.Username exists.
// A missing user is created from in. An existing user is promoted and
// reactivated in place; its password and email are left alone. The boolean
// reports whether a user was created. Role codes in roles are assigned in
// both cases.
func (e *Engine) EnsureSuperuser(ctx context.Context, in RegisterInput, roles ...string) (*User, bool, error) {
	if !e.ready() {
		return nil, false, ErrEngineNotReady
	}

	username := strings.TrimSpace(in.Username)
	u, err := e.store.FindUserByUsername(ctx, username)
	created := false
	switch {
	case err == nil:
		if !u.IsSuperuser || !u.IsActive {
			yes := true
			u, err = e.store.UpdateUser(ctx, u.ID, store.UserUpdate{IsSuperuser: &yes, IsActive: &yes})
			if err != nil {
				return nil, false, e.storeErr("promote superuser", err)
			}
			e.InvalidatePermissions(u.ID)
			e.logger.Info("goAuthz: existing user promoted to superuser", "user_id", u.ID)
			e.emitAudit(ctx, auditEventAccountStatusChange, true, u.ID, u.Username, nil, func() map[string]string {
				return map[string]string{"superuser": "true", "active": "true"}
			})
		}
	case errors.Is(err, store.ErrNotFound):
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if err := flows.ValidateCredentials(username, email, in.Password, e.config.Password.MinLength); err != nil {
			return nil, false, errors.Join(ErrInvalidInput, err)
		}
		digest, err := e.hasher.Hash(ctx, in.Password)
		if err != nil {
			e.logger.Error("goAuthz: superuser hash failed", "error", err)
			return nil, false, ErrInternal
		}
		u, err = e.store.CreateUser(ctx, store.NewUser{
			Username:     username,
			Email:        email,
			PasswordHash: digest,
			FullName:     strings.TrimSpace(in.FullName),
			IsActive:     true,
			IsSuperuser:  true,
		})
		if err != nil {
			return nil, false, e.storeErr("create superuser", err)
		}
		created = true
	default:
		return nil, false, e.storeErr("find user", err)
	}

	for _, code := range roles {
		if err := e.AssignRole(ctx, u.ID, code); err != nil {
			return u, created, err
		}
	}
	return u, created, nil
}

func (e *Engine) admin() (store.Admin, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	admin, ok := e.store.(store.Admin)
	if !ok {
		return nil, ErrAdminUnsupported
	}
	return admin, nil
}

func (e *Engine) lookupErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrRoleNotFound
	}
	return e.storeErr(op, err)
}

func (e *Engine) storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrDuplicateUsername):
		return ErrUsernameTaken
	case errors.Is(err, store.ErrDuplicateEmail):
		return ErrEmailTaken
	case errors.Is(err, store.ErrDuplicateCode):
		return errors.Join(ErrInvalidInput, err)
	default:
		e.logger.Error("goAuthz: "+op+" failed", "error", err)
		return ErrInternal
	}
}
