package goAuthz

import (
	"strings"

	"github.com/MrEthical07/goAuthz/internal/security"
)

// SecurityReport summarizes the engine's effective security settings.
type SecurityReport = security.Report

// SecurityReport returns the security posture derived from the engine config.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	method := strings.ToLower(e.config.JWT.SigningMethod)
	hmacLen := 0
	if strings.HasPrefix(method, "hs") {
		hmacLen = len(e.config.JWT.PrivateKey)
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: method,
		VerifyOnly:       !e.jwtManager.CanSign(),
		HMACKeyLength:    hmacLen,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
		},
		RevokeRotatedRefresh:  e.config.Security.RevokeRotatedRefresh,
		RevocationFailOpen:    e.config.Revocation.FailOpen,
		EnableLoginThrottle:   e.config.Security.EnableLoginThrottle,
		EnableIPThrottle:      e.config.Security.EnableIPThrottle,
		MaxLoginAttempts:      e.config.Security.MaxLoginAttempts,
		LoginCooldown:         e.config.Security.LoginCooldownDuration,
		MaxRegistrationsPerIP: e.config.Security.MaxRegistrationsPerIP,
		PermissionCache:       e.config.PermissionCache.Enabled,
		PermissionCacheTTL:    e.config.PermissionCache.TTL,
	})
}
