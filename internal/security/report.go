package security

import "time"

// PasswordReport summarizes the argon2id cost parameters.
type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// Report is a read-only summary of an engine's security posture, suitable
// for startup logs and health endpoints.
type Report struct {
	ProductionMode           bool
	SigningAlgorithm         string
	VerifyOnly               bool
	AccessTTL                time.Duration
	RefreshTTL               time.Duration
	Argon2                   PasswordReport
	RefreshRotationRevokes   bool
	RevocationFailClosed     bool
	LoginThrottleActive      bool
	IPThrottleActive         bool
	RegistrationThrottle     bool
	PermissionCacheActive    bool
	PermissionCacheStaleness time.Duration
	Warnings                 []string
}

// ReportInput is the flattened configuration BuildReport works from.
type ReportInput struct {
	ProductionMode        bool
	SigningAlgorithm      string
	VerifyOnly            bool
	HMACKeyLength         int
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Password              PasswordReport
	RevokeRotatedRefresh  bool
	RevocationFailOpen    bool
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	MaxRegistrationsPerIP int
	PermissionCache       bool
	PermissionCacheTTL    time.Duration
}

// BuildReport derives a Report and flags settings that weaken the defaults.
func BuildReport(input ReportInput) Report {
	loginThrottle := input.EnableLoginThrottle &&
		input.MaxLoginAttempts > 0 &&
		input.LoginCooldown > 0

	r := Report{
		ProductionMode:         input.ProductionMode,
		SigningAlgorithm:       input.SigningAlgorithm,
		VerifyOnly:             input.VerifyOnly,
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		Argon2:                 input.Password,
		RefreshRotationRevokes: input.RevokeRotatedRefresh,
		RevocationFailClosed:   !input.RevocationFailOpen,
		LoginThrottleActive:    loginThrottle,
		IPThrottleActive:       loginThrottle && input.EnableIPThrottle,
		RegistrationThrottle:   input.MaxRegistrationsPerIP > 0,
		PermissionCacheActive:  input.PermissionCache,
	}
	if input.PermissionCache {
		r.PermissionCacheStaleness = input.PermissionCacheTTL
	}

	if !input.RevokeRotatedRefresh {
		r.Warnings = append(r.Warnings, "rotated refresh tokens stay valid until expiry")
	}
	if input.RevocationFailOpen {
		r.Warnings = append(r.Warnings, "revocation checks fail open while redis is unavailable")
	}
	if !loginThrottle {
		r.Warnings = append(r.Warnings, "login throttling disabled")
	}
	if input.HMACKeyLength > 0 && input.HMACKeyLength < 32 {
		r.Warnings = append(r.Warnings, "hmac signing key shorter than 256 bits")
	}
	if input.Password.MinLength < 8 {
		r.Warnings = append(r.Warnings, "minimum password length below 8")
	}
	return r
}
