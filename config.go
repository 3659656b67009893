package goAuthz

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by goAuthz APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT             JWTConfig
	Password        PasswordConfig
	Revocation      RevocationConfig
	Security        SecurityConfig
	PermissionCache PermissionCacheConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and verification.
//
// SigningMethod is one of "hs256" (default), "hs384", "hs512" or "ed25519".
// For the HMAC methods PrivateKey is the shared secret. JWKS, when set,
// builds a verify-only engine that accepts Ed25519 tokens minted elsewhere.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	JWKS          []byte
	KeyID         string
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and the registration policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxConcurrent  int64
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the Redis revocation registry.
type RevocationConfig struct {
	RedisPrefix string
	// FailOpen makes IsRevoked report "not revoked" while Redis is down.
	// The default is fail-closed.
	FailOpen bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig groups hardening switches.
type SecurityConfig struct {
	ProductionMode bool
	// RevokeRotatedRefresh consumes the presented refresh token on every
	// successful refresh so it cannot be replayed.
	RevokeRotatedRefresh bool

	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	MaxRegistrationsPerIP int
	RegistrationCooldown  time.Duration
}

/*
====================================
PERMISSION CACHE CONFIG
====================================
*/

// PermissionCacheConfig enables the per-user permission LRU. Disabled by
// default; when enabled, role changes take up to TTL to be observed unless
// Engine.InvalidatePermissions is called.
type PermissionCacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards routine events on a full queue. Refresh reuse,
	// account status and role changes are never dropped.
	DropIfFull bool
	// SinkTimeout bounds each sink write. Zero means no deadline.
	SinkTimeout time.Duration
}

// MetricsConfig enables in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when Builder.WithConfig is
// not called. The signing key is empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			MaxFutureIAT:  10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MaxConcurrent:  8,
			MinLength:      6,
			UpgradeOnLogin: true,
		},
		Revocation: RevocationConfig{
			RedisPrefix: "token_blacklist:",
		},
		Security: SecurityConfig{
			RevokeRotatedRefresh:  true,
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			MaxRegistrationsPerIP: 0,
			RegistrationCooldown:  time.Hour,
		},
		PermissionCache: PermissionCacheConfig{
			Enabled: false,
			Size:    10000,
			TTL:     30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.JWT.JWKS = cloneBytes(cfg.JWT.JWKS)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}

	method := strings.ToLower(c.JWT.SigningMethod)
	switch method {
	case "hs256", "hs384", "hs512":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New(method + " requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 && len(c.JWT.JWKS) == 0 {
			return errors.New("ed25519 requires PrivateKey, PublicKey or JWKS")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.JWKS) > 0 && method != "ed25519" {
		return errors.New("JWT JWKS requires ed25519 signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxConcurrent < 0 {
		return errors.New("Password MaxConcurrent must be >= 0")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Revocation
	if strings.TrimSpace(c.Revocation.RedisPrefix) == "" {
		return errors.New("Revocation RedisPrefix must not be empty")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when login throttling is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0 when login throttling is enabled")
		}
	}
	if c.Security.EnableIPThrottle && !c.Security.EnableLoginThrottle {
		return errors.New("Security EnableIPThrottle requires EnableLoginThrottle")
	}
	if c.Security.MaxRegistrationsPerIP < 0 {
		return errors.New("Security MaxRegistrationsPerIP must be >= 0")
	}
	if c.Security.MaxRegistrationsPerIP > 0 && c.Security.RegistrationCooldown <= 0 {
		return errors.New("Security RegistrationCooldown must be > 0 when registration throttling is enabled")
	}

	// Permission cache
	if c.PermissionCache.Enabled {
		if c.PermissionCache.Size <= 0 {
			return errors.New("PermissionCache Size must be > 0")
		}
		if c.PermissionCache.TTL <= 0 {
			return errors.New("PermissionCache TTL must be > 0")
		}
	}

	// Audit
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if strings.HasPrefix(method, "hs") && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires HMAC key length >= 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.MinLength < 8 {
			return errors.New("ProductionMode requires Password MinLength >= 8")
		}
		if !c.Security.EnableLoginThrottle {
			return errors.New("ProductionMode requires login throttling")
		}
		if c.Revocation.FailOpen {
			return errors.New("ProductionMode requires fail-closed revocation")
		}
	}

	return nil
}
