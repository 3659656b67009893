package revocation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
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

	return mr, rdb
}

func newTestRegistry(t *testing.T, rdb redis.UniversalClient, policy FailurePolicy) *Registry {
	t.Helper()
	r, err := New(rdb, Config{DefaultTTL: 30 * time.Minute, FailurePolicy: policy})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestRevokeAndIsRevoked(t *testing.T) {
	mr, rdb := newTestRedis(t)
	r := newTestRegistry(t, rdb, FailClosed)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "token-a")
	if err != nil || revoked {
		t.Fatalf("expected fresh token not revoked, got %v %v", revoked, err)
	}

	if err := r.Revoke(ctx, "token-a", 10*time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = r.IsRevoked(ctx, "token-a")
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, got %v %v", revoked, err)
	}

	keys := mr.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], DefaultPrefix) {
		t.Fatalf("expected one prefixed key, got %v", keys)
	}
	if strings.Contains(keys[0], "token-a") {
		t.Fatalf("expected token to be hashed in key, got %q", keys[0])
	}
	if ttl := mr.TTL(keys[0]); ttl != 10*time.Minute {
		t.Fatalf("expected ttl 10m, got %v", ttl)
	}
}

func TestRevokeEntrySelfExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	r := newTestRegistry(t, rdb, FailClosed)
	ctx := context.Background()

	if err := r.Revoke(ctx, "token-b", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	mr.FastForward(time.Minute + time.Second)

	revoked, err := r.IsRevoked(ctx, "token-b")
	if err != nil || revoked {
		t.Fatalf("expected entry to expire, got %v %v", revoked, err)
	}
}

func TestRevokeFallsBackToDefaultTTL(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := newTestRegistry(t, rdb, FailClosed)
	ctx := context.Background()

	if err := r.Revoke(ctx, "token-c", 0); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ttl, err := r.RemainingTTL(ctx, "token-c")
	if err != nil {
		t.Fatalf("remaining ttl: %v", err)
	}
	if ttl != 30*time.Minute {
		t.Fatalf("expected default ttl 30m, got %v", ttl)
	}
}

func TestUnrevoke(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := newTestRegistry(t, rdb, FailClosed)
	ctx := context.Background()

	if err := r.Revoke(ctx, "token-d", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := r.Unrevoke(ctx, "token-d"); err != nil {
		t.Fatalf("unrevoke: %v", err)
	}
	if err := r.Unrevoke(ctx, "token-d"); err != nil {
		t.Fatalf("second unrevoke should be a no-op: %v", err)
	}
	revoked, err := r.IsRevoked(ctx, "token-d")
	if err != nil || revoked {
		t.Fatalf("expected token not revoked after unrevoke, got %v %v", revoked, err)
	}
}

func TestRevokeOnceSingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	r := newTestRegistry(t, rdb, FailClosed)
	ctx := context.Background()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := r.RevokeOnce(ctx, "refresh-token", time.Hour)
			if err != nil {
				t.Errorf("revoke once: %v", err)
				return
			}
			if created {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestStoreFailurePolicy(t *testing.T) {
	mr, rdb := newTestRedis(t)
	closed := newTestRegistry(t, rdb, FailClosed)
	open := newTestRegistry(t, rdb, FailOpen)
	ctx := context.Background()

	mr.Close()

	revoked, err := closed.IsRevoked(ctx, "token-e")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if !revoked {
		t.Fatal("expected fail-closed registry to report revoked")
	}

	revoked, err = open.IsRevoked(ctx, "token-e")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if revoked {
		t.Fatal("expected fail-open registry to report not revoked")
	}

	if err := closed.Revoke(ctx, "token-e", time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected revoke to surface ErrRedisUnavailable, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New(nil, Config{DefaultTTL: time.Minute}); err == nil {
		t.Fatal("expected error for nil redis")
	}
	if _, err := New(rdb, Config{}); err == nil {
		t.Fatal("expected error for missing default ttl")
	}
	if _, err := New(rdb, Config{DefaultTTL: time.Minute, FailurePolicy: FailurePolicy(7)}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
