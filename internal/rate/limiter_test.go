package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return mr, New(rdb, cfg)
}

func TestLoginLimiterBlocksAfterBudget(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 3, LoginCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: unexpected limit: %v", i, err)
		}
		if err := l.RecordLoginFailure(ctx, "alice", ""); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if n, _ := l.LoginAttempts(ctx, "alice"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to reset, got %v", err)
	}
}

func TestLoginLimiterReset(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldown: time.Minute})
	ctx := context.Background()

	_ = l.RecordLoginFailure(ctx, "bob", "")
	_ = l.RecordLoginFailure(ctx, "bob", "")
	if err := l.CheckLogin(ctx, "bob", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.ResetLogin(ctx, "bob"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("expected reset to clear limit, got %v", err)
	}
}

func TestLoginLimiterPerIP(t *testing.T) {
	_, l := newTestLimiter(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldown: time.Minute})
	ctx := context.Background()

	_ = l.RecordLoginFailure(ctx, "u1", "10.0.0.1")
	_ = l.RecordLoginFailure(ctx, "u2", "10.0.0.1")

	if err := l.CheckLogin(ctx, "u3", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected per-IP limit, got %v", err)
	}
	if err := l.CheckLogin(ctx, "u3", "10.0.0.2"); err != nil {
		t.Fatalf("expected other IP to pass, got %v", err)
	}
}

func TestRegistrationLimiter(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxRegistrationsPerIP: 2, RegistrationCooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRegistration(ctx, "10.0.0.9"); err != nil {
			t.Fatalf("registration %d: %v", i, err)
		}
	}
	if err := l.CheckRegistration(ctx, "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckRegistration(ctx, ""); err != nil {
		t.Fatalf("expected empty ip to bypass, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxLoginAttempts: 2, LoginCooldown: time.Minute})
	mr.Close()

	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
