package goAuthz

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goAuthz/internal/audit"
	"github.com/MrEthical07/goAuthz/internal/flows"
	internalmetrics "github.com/MrEthical07/goAuthz/internal/metrics"
	"github.com/MrEthical07/goAuthz/internal/rate"
	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/password"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/revocation"
	"github.com/redis/go-redis/v9"
)

// PermissionDefinition declares a permission code known to the application.
type PermissionDefinition = permission.Definition

// RoleTemplate declares a role and the permission codes it grants.
type RoleTemplate = permission.RoleTemplate

// Builder defines a public type used by goAuthz APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  CredentialStore
	logger *slog.Logger
	clock  func() time.Time

	permissions []PermissionDefinition
	roles       []RoleTemplate

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing revocation and throttling. Cluster and
// failover clients are accepted.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the credential store. A store that also implements
// store.Admin enables the RBAC administration methods.
func (b *Builder) WithStore(s CredentialStore) *Builder {
	b.store = s
	return b
}

// WithLogger sets the logger used for backend failures. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuance, verification and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithPermissions declares the permission codes used by policies. When any
// are declared, Guard rejects policies naming undeclared codes.
func (b *Builder) WithPermissions(defs ...PermissionDefinition) *Builder {
	b.permissions = append(b.permissions, defs...)
	return b
}

// WithRoles declares role templates provisioned by Engine.SeedRoles.
func (b *Builder) WithRoles(roles ...RoleTemplate) *Builder {
	b.roles = append(b.roles, roles...)
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- PERMISSION REGISTRY --------
	registry := permission.NewRegistry()
	for _, def := range b.permissions {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- ROLE MANAGER --------
	roleManager := permission.NewRoleManager(registry)
	for _, tpl := range b.roles {
		if err := roleManager.RegisterRole(tpl); err != nil {
			return nil, err
		}
	}
	roleManager.Freeze()

	// -------- TOKENS --------
	jwtCfg := jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		Now:           clock,
	}
	var (
		jm  *jwt.Manager
		err error
	)
	if len(cfg.JWT.JWKS) > 0 {
		jm, err = jwt.NewVerifierFromJWKS(cloneBytes(cfg.JWT.JWKS), jwtCfg)
	} else {
		jm, err = jwt.NewManager(jwtCfg)
	}
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	ph, err := password.NewHasher(password.Config{
		Memory:        cfg.Password.Memory,
		Time:          cfg.Password.Time,
		Parallelism:   cfg.Password.Parallelism,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MaxConcurrent: cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	// -------- REVOCATION --------
	policy := revocation.FailClosed
	if cfg.Revocation.FailOpen {
		policy = revocation.FailOpen
	}
	revs, err := revocation.New(b.redis, revocation.Config{
		Prefix:        cfg.Revocation.RedisPrefix,
		DefaultTTL:    cfg.JWT.AccessTTL,
		FailurePolicy: policy,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		store:       b.store,
		registry:    registry,
		roleManager: roleManager,
		jwtManager:  jm,
		hasher:      ph,
		revocations: revs,
		logger:      logger,
		clock:       clock,
	}

	engine.rateLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldown:         cfg.Security.LoginCooldownDuration,
		MaxRegistrationsPerIP: cfg.Security.MaxRegistrationsPerIP,
		RegistrationCooldown:  cfg.Security.RegistrationCooldown,
	})
	if cfg.PermissionCache.Enabled {
		engine.permCache = permission.NewCache(cfg.PermissionCache.Size, cfg.PermissionCache.TTL)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
		Critical:    criticalAuditEvent,
	}, b.auditSink)
	engine.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})
	engine.flow = flows.New(engine.buildFlowDeps())

	b.built = true

	return engine, nil
}
