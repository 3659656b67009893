package jwt

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm used by a Manager.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 over the shared secret. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
	// MethodEd25519 signs with an Ed25519 private key and verifies with the public key.
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind tags a token with its intended use.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed is returned when a token cannot be parsed or lacks required claims.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature is returned when the signature does not verify or the algorithm is unexpected.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the current time is at or after the token expiry.
	ErrExpired = errors.New("token expired")
	// ErrKindMismatch is returned when the token kind differs from the expected one.
	ErrKindMismatch = errors.New("token kind mismatch")
	// ErrInvalidClaims covers issuer, audience and issued-at violations.
	ErrInvalidClaims = errors.New("token claims invalid")
	// ErrVerifyOnly is returned by Issue on a manager that holds no signing key.
	ErrVerifyOnly = errors.New("manager cannot sign tokens")
)

// Config controls signing and verification.
//
// PrivateKey holds the shared secret for the HMAC methods and the private key
// (raw or PEM) for Ed25519. Leeway is zero unless set, so a token is expired
// at exactly its exp instant.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	// Now overrides the clock for issuance and verification. Nil means time.Now.
	Now func() time.Time
}

// Manager issues and verifies access and refresh tokens.
type Manager struct {
	config  Config
	method  jwt.SigningMethod
	signKey any
	keyFunc jwt.Keyfunc
}

// Claims is the payload carried by every token.
type Claims struct {
	Kind Kind `json:"type"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager able to sign and verify.
func NewManager(cfg Config) (*Manager, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{config: cfg, method: methodFor(cfg.SigningMethod)}
	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		if len(cfg.PrivateKey) == 0 {
			return nil, fmt.Errorf("%s requires a signing secret", cfg.SigningMethod)
		}
		secret := append([]byte(nil), cfg.PrivateKey...)
		m.signKey = secret
		m.keyFunc = m.staticKeyFunc(secret)
	case MethodEd25519:
		var verifyKey ed25519.PublicKey
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			verifyKey = priv.Public().(ed25519.PublicKey)
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			verifyKey = pub
		}
		if verifyKey == nil {
			return nil, errors.New("ed25519 requires a private or public key")
		}
		m.keyFunc = m.staticKeyFunc(verifyKey)
	}

	return m, nil
}

// NewVerifierFromJWKS returns a verify-only Manager whose keys come from a JWKS
// document. Only Ed25519 keys are accepted; tokens must carry a kid header.
func NewVerifierFromJWKS(jwks json.RawMessage, cfg Config) (*Manager, error) {
	cfg.SigningMethod = MethodEd25519
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		return nil, fmt.Errorf("load jwks: %w", err)
	}

	m := &Manager{config: cfg, method: jwt.SigningMethodEdDSA}
	m.keyFunc = func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return kf.Keyfunc(t)
	}
	return m, nil
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.SigningMethod = SigningMethod(strings.ToLower(string(cfg.SigningMethod)))
	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512, MethodEd25519:
	default:
		return cfg, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return cfg, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return cfg, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg, nil
}

// CanSign reports whether the manager holds a signing key.
func (m *Manager) CanSign() bool {
	return m != nil && m.signKey != nil
}

// Issue signs a token for subject with the given kind that expires ttl from now.
// It returns the compact token and its expiry.
func (m *Manager) Issue(subject string, kind Kind, ttl time.Duration) (string, time.Time, error) {
	if !m.CanSign() {
		return "", time.Time{}, ErrVerifyOnly
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token ttl must be > 0")
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}

	now := m.config.Now()
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

// Verify checks signature, expiry and kind. Failures are reported as one of
// ErrMalformed, ErrInvalidSignature, ErrExpired, ErrKindMismatch or ErrInvalidClaims.
func (m *Manager) Verify(tokenStr string, expected Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidClaims)
	}
	if claims.Kind != expected {
		return nil, ErrKindMismatch
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}

func (m *Manager) staticKeyFunc(key any) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return key, nil
	}
}

func methodFor(method SigningMethod) jwt.SigningMethod {
	switch method {
	case MethodHS384:
		return jwt.SigningMethodHS384
	case MethodHS512:
		return jwt.SigningMethodHS512
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
