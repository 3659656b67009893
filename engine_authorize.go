package goAuthz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/internal/flows"
	"github.com/MrEthical07/goAuthz/permission"
)

// Authorize validates token and requires at least one of required. With no
// codes any active authenticated user is allowed.
func (e *Engine) Authorize(ctx context.Context, token string, required ...string) (*AuthResult, error) {
	return e.AuthorizeWithPolicy(ctx, token, permission.Any(required...))
}

// AuthorizeWithPolicy validates token and evaluates policy. Failures are one
// of ErrUnauthenticated, ErrAccountDisabled, ErrForbidden or ErrInternal.
func (e *Engine) AuthorizeWithPolicy(ctx context.Context, token string, policy Policy) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeLatency(MetricAuthorizeLatency, start)

	res := e.flow.Authorize(ctx, token, policy)

	if res.RevocationErr != nil {
		e.metricInc(MetricRevocationStoreError)
		e.logger.Warn("goAuthz: revocation lookup failed", "error", res.RevocationErr)
	}
	if res.User != nil && !res.Superuser && res.Failure != flows.AuthorizeFailureDisabled {
		if res.CacheHit {
			e.metricInc(MetricPermissionCacheHit)
		} else if e.permCache != nil {
			e.metricInc(MetricPermissionCacheMiss)
		}
	}

	switch res.Failure {
	case flows.AuthorizeFailureNone:
		e.metricInc(MetricAuthorizeAllowed)
		return &AuthResult{
			User:        res.User,
			Permissions: res.Permissions,
			Roles:       res.Roles,
			Superuser:   res.Superuser,
		}, nil
	case flows.AuthorizeFailureInvalidToken,
		flows.AuthorizeFailureRevoked,
		flows.AuthorizeFailureUnknownSubject:
		e.metricInc(MetricAuthorizeUnauthenticated)
		return nil, ErrUnauthenticated
	case flows.AuthorizeFailureDisabled:
		e.metricInc(MetricAuthorizeDisabled)
		return nil, ErrAccountDisabled
	case flows.AuthorizeFailureForbidden:
		e.metricInc(MetricAuthorizeForbidden)
		e.emitAudit(ctx, auditEventAccessDenied, false, res.User.ID, res.User.Username, ErrForbidden, func() map[string]string {
			return map[string]string{
				"mode":     policy.Mode.String(),
				"required": strings.Join(policy.Permissions, ","),
				"roles":    strings.Join(policy.Roles, ","),
			}
		})
		return nil, ErrForbidden
	default:
		e.logger.Error("goAuthz: authorization failed", "error", res.Err)
		return nil, ErrInternal
	}
}

// Guard returns an AuthorizeFunc bound to policy. It fails when policy names
// a permission code that was not declared with Builder.WithPermissions.
func (e *Engine) Guard(policy Policy) (AuthorizeFunc, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if err := e.registry.Validate(policy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return func(ctx context.Context, token string) (*AuthResult, error) {
		return e.AuthorizeWithPolicy(ctx, token, policy)
	}, nil
}

// PermissionDeclared reports whether code was declared with
// Builder.WithPermissions.
func (e *Engine) PermissionDeclared(code string) bool {
	if !e.ready() {
		return false
	}
	_, ok := e.registry.Lookup(code)
	return ok
}

// MustGuard is like Guard but panics on an invalid policy. Intended for
// route wiring at startup.
func (e *Engine) MustGuard(policy Policy) AuthorizeFunc {
	fn, err := e.Guard(policy)
	if err != nil {
		panic(err)
	}
	return fn
}

// InvalidatePermissions drops the cached permission set of userID so the
// next authorization reads role assignments from the store.
func (e *Engine) InvalidatePermissions(userID string) {
	if e == nil {
		return
	}
	e.permCache.Invalidate(userID)
}
