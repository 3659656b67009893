package password

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Config holds argon2id cost parameters. MaxConcurrent bounds how many hash
// computations may run at once; zero means unbounded.
type Config struct {
	Memory        uint32 // in KB
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MaxConcurrent int64
}

// DefaultConfig returns the parameters used when the caller supplies none.
func DefaultConfig() Config {
	return Config{
		Memory:        64 * 1024,
		Time:          3,
		Parallelism:   2,
		SaltLength:    16,
		KeyLength:     32,
		MaxConcurrent: 0,
	}
}

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// legacy bcrypt digests.
type Hasher struct {
	argon *Argon2
	sem   *semaphore.Weighted
	dummy string
}

// NewHasher builds a Hasher from cfg.
func NewHasher(cfg Config) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}

	h := &Hasher{argon: argon}
	if cfg.MaxConcurrent > 0 {
		h.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}

	dummy, err := argon.Hash("goauthz-dummy-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash returns an argon2id digest of plaintext. It blocks while the
// concurrency limit is reached and gives up when ctx is done.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("password must not be empty")
	}
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	return h.argon.Hash(plaintext)
}

// Verify reports whether plaintext matches digest.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	if isBcrypt(digest) {
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, errors.Join(ErrInvalidDigest, err)
		}
	}

	return h.argon.Verify(plaintext, digest)
}

// Equalize spends the same work as a real verification against a throwaway
// digest. Login calls it for unknown usernames.
func (h *Hasher) Equalize(ctx context.Context, plaintext string) {
	_, _ = h.Verify(ctx, plaintext, h.dummy)
}

// NeedsUpgrade reports whether digest should be replaced by a fresh Hash.
// Legacy bcrypt digests always qualify.
func (h *Hasher) NeedsUpgrade(digest string) (bool, error) {
	if isBcrypt(digest) {
		if _, err := bcrypt.Cost([]byte(digest)); err != nil {
			return false, errors.Join(ErrInvalidDigest, err)
		}
		return true, nil
	}
	return h.argon.NeedsUpgrade(digest)
}

func (h *Hasher) acquire(ctx context.Context) error {
	if h.sem == nil {
		return ctx.Err()
	}
	return h.sem.Acquire(ctx, 1)
}

func (h *Hasher) release() {
	if h.sem != nil {
		h.sem.Release(1)
	}
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
