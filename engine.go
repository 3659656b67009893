package goAuthz

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	internalaudit "github.com/MrEthical07/goAuthz/internal/audit"
	"github.com/MrEthical07/goAuthz/internal/flows"
	internalmetrics "github.com/MrEthical07/goAuthz/internal/metrics"
	"github.com/MrEthical07/goAuthz/internal/rate"
	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/password"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/revocation"
)

// Engine is the authentication and authorization core. Build one with
// [New]...[Builder.Build]; it is safe for concurrent use and holds no locks
// on the request path.
type Engine struct {
	config      Config
	store       CredentialStore
	registry    *permission.Registry
	roleManager *permission.RoleManager
	jwtManager  *jwt.Manager
	hasher      *password.Hasher
	revocations *revocation.Registry
	rateLimiter *rate.Limiter
	permCache   *permission.Cache
	audit       *internalaudit.Dispatcher
	metrics     *internalmetrics.Metrics
	logger      *slog.Logger
	clock       func() time.Time
	flow        flows.Service
}

func (e *Engine) buildFlowDeps() flows.Deps {
	warn := func(msg string, args ...any) {
		e.logger.Warn(msg, args...)
	}

	var loginLimiter flows.LoginRateLimiter
	if e.config.Security.EnableLoginThrottle {
		loginLimiter = e.rateLimiter
	}
	var registerLimiter flows.RegistrationRateLimiter
	if e.config.Security.MaxRegistrationsPerIP > 0 {
		registerLimiter = e.rateLimiter
	}
	var cache flows.PermissionCache
	if e.permCache != nil {
		cache = e.permCache
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			Store:               e.store,
			Hasher:              e.hasher,
			Tokens:              e.jwtManager,
			Limiter:             loginLimiter,
			AccessTTL:           e.config.JWT.AccessTTL,
			RefreshTTL:          e.config.JWT.RefreshTTL,
			UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
			ClientIPFromContext: clientIPFromContext,
			Warn:                warn,
		},
		Refresh: flows.RefreshDeps{
			Store:        e.store,
			Tokens:       e.jwtManager,
			Revocations:  e.revocations,
			AccessTTL:    e.config.JWT.AccessTTL,
			RefreshTTL:   e.config.JWT.RefreshTTL,
			RevokeRotate: e.config.Security.RevokeRotatedRefresh,
			Now:          e.clock,
			Warn:         warn,
		},
		Logout: flows.LogoutDeps{
			Tokens:      e.jwtManager,
			Revocations: e.revocations,
			Now:         e.clock,
		},
		Register: flows.RegisterDeps{
			Store:               e.store,
			Hasher:              e.hasher,
			Limiter:             registerLimiter,
			MinPasswordLength:   e.config.Password.MinLength,
			ClientIPFromContext: clientIPFromContext,
			Warn:                warn,
		},
		Authorize: flows.AuthorizeDeps{
			Store:       e.store,
			Tokens:      e.jwtManager,
			Revocations: e.revocations,
			Cache:       cache,
			Warn:        warn,
		},
		Account: flows.AccountDeps{
			Store:             e.store,
			Hasher:            e.hasher,
			Cache:             cache,
			MinPasswordLength: e.config.Password.MinLength,
		},
	}
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Close stops the audit dispatcher after flushing queued events. The Redis
// client and the store are owned by the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Register creates an active, non-superuser account.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.Register(ctx, flows.RegisterRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
	})

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.ID, res.User.Username, nil, nil)
		return res.User, nil
	case flows.RegisterFailureInvalidInput:
		err = errors.Join(ErrInvalidInput, res.Err)
	case flows.RegisterFailureUsernameTaken:
		e.metricInc(MetricRegisterDuplicate)
		err = ErrUsernameTaken
	case flows.RegisterFailureEmailTaken:
		e.metricInc(MetricRegisterDuplicate)
		err = ErrEmailTaken
	case flows.RegisterFailureRateLimited:
		err = ErrRegistrationRateLimited
	default:
		e.logger.Error("goAuthz: registration failed", "error", res.Err)
		err = ErrInternal
	}

	e.emitAudit(ctx, auditEventRegisterFailure, false, "", strings.TrimSpace(in.Username), err, nil)
	return nil, err
}

// Login authenticates username and password. The refresh token is only
// issued when remember is true.
func (e *Engine) Login(ctx context.Context, username, password string, remember bool) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	username = strings.TrimSpace(username)
	res := e.flow.Login(ctx, username, password, remember)
	userID := ""
	if res.User != nil {
		userID = res.User.ID
	}

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", username, ErrLoginRateLimited, nil)
		return nil, ErrLoginRateLimited
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, username, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": res.Reason}
		})
		return nil, ErrInvalidCredentials
	case flows.LoginFailureDisabled:
		e.metricInc(MetricLoginDisabled)
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, username, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	default:
		e.logger.Error("goAuthz: login failed", "reason", res.Reason, "error", res.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, userID, username, ErrInternal, nil)
		return nil, ErrInternal
	}

	if res.Rehashed {
		e.metricInc(MetricPasswordRehash)
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, userID, res.User.Username, nil, func() map[string]string {
		if remember {
			return map[string]string{"remember": "true"}
		}
		return nil
	})

	return e.tokenPair(res.AccessToken, res.RefreshToken, res.AccessExpiresAt), nil
}

// Refresh exchanges a refresh token for a new pair. Every failure that is
// the caller's fault is reported as ErrInvalidRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flow.Refresh(ctx, refreshToken)
	userID, username := "", ""
	if res.User != nil {
		userID, username = res.User.ID, res.User.Username
	}
	if res.Failure == flows.RefreshFailureRevoked && res.Err != nil {
		e.metricInc(MetricRevocationStoreError)
		e.logger.Warn("goAuthz: revocation lookup failed", "error", res.Err)
	}

	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, username, nil, nil)
		return e.tokenPair(res.AccessToken, res.RefreshToken, res.AccessExpiresAt), nil
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, username, ErrInvalidRefreshToken, nil)
		return nil, ErrInvalidRefreshToken
	case flows.RefreshFailureInternal:
		if errors.Is(res.Err, revocation.ErrRedisUnavailable) {
			e.metricInc(MetricRevocationStoreError)
		}
		e.logger.Error("goAuthz: refresh failed", "error", res.Err)
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInternal
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, username, ErrInvalidRefreshToken, func() map[string]string {
			return map[string]string{"reason": refreshReason(res.Failure)}
		})
		return nil, ErrInvalidRefreshToken
	}
}

// Logout revokes accessToken until it expires. An already expired token is
// accepted without a registry write.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flow.Logout(ctx, accessToken)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogoutSuccess)
		e.emitAudit(ctx, auditEventLogout, true, "", res.Subject, nil, func() map[string]string {
			if res.AlreadyExpired {
				return map[string]string{"already_expired": "true"}
			}
			return nil
		})
		return nil
	case flows.LogoutFailureUnauthenticated:
		e.metricInc(MetricLogoutFailure)
		return errors.Join(ErrLogoutFailed, ErrUnauthenticated)
	default:
		e.metricInc(MetricLogoutFailure)
		e.metricInc(MetricRevocationStoreError)
		e.logger.Error("goAuthz: logout revocation failed", "error", res.Err)
		e.emitAudit(ctx, auditEventLogout, false, "", res.Subject, ErrLogoutFailed, nil)
		return ErrLogoutFailed
	}
}

// Revoke administratively revokes any token for ttl. A non-positive ttl uses
// the access token lifetime.
func (e *Engine) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.revocations.Revoke(ctx, token, ttl); err != nil {
		e.metricInc(MetricRevocationStoreError)
		e.logger.Error("goAuthz: revoke failed", "error", err)
		return ErrInternal
	}
	e.emitAudit(ctx, auditEventTokenRevoked, true, "", "", nil, nil)
	return nil
}

// Unrevoke removes a revocation entry.
func (e *Engine) Unrevoke(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.revocations.Unrevoke(ctx, token); err != nil {
		e.metricInc(MetricRevocationStoreError)
		e.logger.Error("goAuthz: unrevoke failed", "error", err)
		return ErrInternal
	}
	e.emitAudit(ctx, auditEventTokenUnrevoked, true, "", "", nil, nil)
	return nil
}

// IsRevoked reports whether token is in the revocation registry. Store
// failures follow the configured failure policy and are also returned.
func (e *Engine) IsRevoked(ctx context.Context, token string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	revoked, err := e.revocations.IsRevoked(ctx, token)
	if err != nil {
		e.metricInc(MetricRevocationStoreError)
		return revoked, errors.Join(ErrInternal, err)
	}
	return revoked, nil
}

func (e *Engine) tokenPair(access, refresh string, expiresAt time.Time) *TokenPair {
	expiresIn := int64(e.config.JWT.AccessTTL / time.Second)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		ExpiresAt:    expiresAt,
	}
}

func refreshReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureInvalidToken:
		return "invalid_token"
	case flows.RefreshFailureRevoked:
		return "revoked"
	case flows.RefreshFailureUnknownSubject:
		return "unknown_subject"
	case flows.RefreshFailureDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
