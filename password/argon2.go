package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2Prefix          = "$argon2id$"
)

// ErrInvalidDigest is returned when a stored digest cannot be decoded.
var ErrInvalidDigest = errors.New("invalid password digest")

// Argon2 produces and checks argon2id digests in PHC string form.
type Argon2 struct {
	params argonParams
}

type argonParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewArgon2 validates the cost parameters in cfg.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Argon2{params: argonParams{
		memory:      cfg.Memory,
		time:        cfg.Time,
		parallelism: cfg.Parallelism,
		saltLength:  cfg.SaltLength,
		keyLength:   cfg.KeyLength,
	}}, nil
}

// Hash derives a digest of plaintext under a fresh random salt.
func (a *Argon2) Hash(plaintext string) (string, error) {
	salt := make([]byte, a.params.saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.params.time, a.params.memory, a.params.parallelism, a.params.keyLength)

	return fmt.Sprintf(
		"%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		a.params.memory,
		a.params.time,
		a.params.parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters embedded in digest and
// compares in constant time.
func (a *Argon2) Verify(plaintext, digest string) (bool, error) {
	stored, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(plaintext), stored.salt, stored.params.time, stored.params.memory, stored.params.parallelism, stored.params.keyLength)
	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

// NeedsUpgrade reports whether digest was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(digest string) (bool, error) {
	stored, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}

	p := stored.params
	return a.params.memory > p.memory ||
		a.params.time > p.time ||
		a.params.parallelism > p.parallelism ||
		a.params.keyLength != p.keyLength, nil
}

type argonDigest struct {
	params argonParams
	salt   []byte
	key    []byte
}

// decodeArgon2 parses $argon2id$v=19$m=..,t=..,p=..$salt$key.
func decodeArgon2(digest string) (*argonDigest, error) {
	if !strings.HasPrefix(digest, argon2Prefix) {
		return nil, fmt.Errorf("%w: unsupported algorithm", ErrInvalidDigest)
	}
	fields := strings.Split(strings.TrimPrefix(digest, argon2Prefix), "$")
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: unexpected field count", ErrInvalidDigest)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(fields[0], "v="))
	if err != nil || !strings.HasPrefix(fields[0], "v=") {
		return nil, fmt.Errorf("%w: invalid version", ErrInvalidDigest)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidDigest, version)
	}

	params, err := decodeParams(fields[1])
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: invalid salt", ErrInvalidDigest)
	}
	key, err := base64.StdEncoding.DecodeString(fields[3])
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: invalid key", ErrInvalidDigest)
	}

	params.saltLength = uint32(len(salt))
	params.keyLength = uint32(len(key))
	return &argonDigest{params: params, salt: salt, key: key}, nil
}

func decodeParams(field string) (argonParams, error) {
	var (
		p    argonParams
		seen = map[string]bool{}
	)

	for _, pair := range strings.Split(field, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return p, fmt.Errorf("%w: invalid parameter %q", ErrInvalidDigest, pair)
		}
		seen[name] = true

		bits := 32
		if name == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return p, fmt.Errorf("%w: invalid parameter %q", ErrInvalidDigest, pair)
		}

		switch name {
		case "m":
			p.memory = uint32(v)
		case "t":
			p.time = uint32(v)
		case "p":
			p.parallelism = uint8(v)
		default:
			return p, fmt.Errorf("%w: unsupported parameter %q", ErrInvalidDigest, name)
		}
	}

	if len(seen) != 3 {
		return p, fmt.Errorf("%w: missing parameters", ErrInvalidDigest)
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || p.parallelism < minParallelism {
		return p, fmt.Errorf("%w: parameters below minimum", ErrInvalidDigest)
	}
	return p, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxConcurrent < 0 {
		return errors.New("password max concurrent must be >= 0")
	}
	return nil
}
