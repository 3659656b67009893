package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	digest, err := h.Hash(context.Background(), "secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", digest)
	}

	ok, err := h.Verify(context.Background(), "secret1", digest)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}

	ok, err = h.Verify(context.Background(), "secret2", digest)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	a, err := h.Hash(context.Background(), "same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash(context.Background(), "same-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct digests for the same password")
	}
}

func TestHashEmptyPassword(t *testing.T) {
	h := newTestHasher(t, fastConfig())
	if _, err := h.Hash(context.Background(), ""); err == nil {
		t.Fatal("expected empty password hash to fail")
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	legacy, err := bcrypt.GenerateFromPassword([]byte("changethis"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	ok, err := h.Verify(context.Background(), "changethis", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt digest to verify: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(context.Background(), "wrong", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch: ok=%v err=%v", ok, err)
	}

	upgrade, err := h.NeedsUpgrade(string(legacy))
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !upgrade {
		t.Fatal("expected bcrypt digest to need upgrade")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	old := newTestHasher(t, fastConfig())
	digest, err := old.Hash(context.Background(), "test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	current := newTestHasher(t, stronger)

	upgrade, err := current.NeedsUpgrade(digest)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !upgrade {
		t.Fatal("expected NeedsUpgrade to return true for weaker parameters")
	}

	upgrade, err = old.NeedsUpgrade(digest)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if upgrade {
		t.Fatal("expected NeedsUpgrade to return false for current parameters")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h := newTestHasher(t, fastConfig())

	digest, err := h.Hash(context.Background(), "version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := []string{
		"not-a-phc-hash",
		strings.Replace(digest, "$v=19$", "$v=18$", 1),
		strings.Replace(digest, "m=8192", "m=1024", 1),
		strings.Replace(digest, ",p=1", ",x=1", 1),
		"$2b$04$short",
	}
	for _, c := range cases {
		if _, err := h.Verify(context.Background(), "version-test", c); !errors.Is(err, ErrInvalidDigest) {
			t.Fatalf("expected ErrInvalidDigest for %q, got %v", c, err)
		}
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Memory = 1024
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected low memory config to be rejected")
	}

	cfg = fastConfig()
	cfg.SaltLength = 8
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected short salt config to be rejected")
	}
}

func TestHashHonorsConcurrencyLimit(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	h := newTestHasher(t, cfg)

	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Hash(ctx, "blocked-password"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while limit is held, got %v", err)
	}

	h.sem.Release(1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Hash(context.Background(), "parallel-password"); err != nil {
				t.Errorf("Hash error: %v", err)
			}
		}()
	}
	wg.Wait()
}
