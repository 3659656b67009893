package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key namespace used when Config.Prefix is empty.
const DefaultPrefix = "token_blacklist:"

// ErrRedisUnavailable wraps every store failure returned by the Registry.
var ErrRedisUnavailable = errors.New("revocation store unavailable")

// FailurePolicy decides what IsRevoked reports when the store cannot answer.
type FailurePolicy int

const (
	// FailClosed treats a token as revoked when the store is unreachable.
	FailClosed FailurePolicy = iota
	// FailOpen treats a token as not revoked when the store is unreachable.
	FailOpen
)

func (p FailurePolicy) String() string {
	switch p {
	case FailClosed:
		return "fail-closed"
	case FailOpen:
		return "fail-open"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// Config controls key naming, default lifetime and the failure policy.
type Config struct {
	Prefix string
	// DefaultTTL is used when a caller passes a non-positive ttl to Revoke.
	DefaultTTL    time.Duration
	FailurePolicy FailurePolicy
}

// Registry records revoked tokens in Redis until their natural expiry.
type Registry struct {
	redis  redis.UniversalClient
	config Config
}

// New returns a Registry backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) (*Registry, error) {
	if redisClient == nil {
		return nil, errors.New("revocation registry requires a redis client")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("revocation DefaultTTL must be > 0")
	}
	if cfg.FailurePolicy != FailClosed && cfg.FailurePolicy != FailOpen {
		return nil, errors.New("unknown revocation failure policy")
	}
	return &Registry{redis: redisClient, config: cfg}, nil
}

// Policy returns the configured failure policy.
func (r *Registry) Policy() FailurePolicy {
	return r.config.FailurePolicy
}

// Revoke marks token as revoked for ttl. A non-positive ttl falls back to
// DefaultTTL. Revoking the same token twice is harmless.
func (r *Registry) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, r.key(token), "1", r.ttl(ttl)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeOnce marks token as revoked only if it is not already. The boolean
// reports whether this call created the entry, so exactly one of several
// concurrent callers observes true.
func (r *Registry) RevokeOnce(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	created, err := r.redis.SetNX(ctx, r.key(token), "1", r.ttl(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return created, nil
}

// IsRevoked reports whether token has been revoked. When the store fails the
// result follows the failure policy and the store error is returned alongside
// it for logging.
func (r *Registry) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return r.config.FailurePolicy == FailClosed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Unrevoke removes the revocation entry for token. Removing an absent entry
// is not an error.
func (r *Registry) Unrevoke(ctx context.Context, token string) error {
	if err := r.redis.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RemainingTTL returns how long the entry for token will still live, or zero
// when there is none.
func (r *Registry) RemainingTTL(ctx context.Context, token string) (time.Duration, error) {
	ttl, err := r.redis.TTL(ctx, r.key(token)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *Registry) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return r.config.DefaultTTL
	}
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// key hashes the token so bearer credentials are never stored verbatim.
func (r *Registry) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.config.Prefix + hex.EncodeToString(sum[:])
}
