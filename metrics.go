package goAuthz

import (
	"time"

	internalmetrics "github.com/MrEthical07/goAuthz/internal/metrics"
)

// MetricID identifies a specific counter or histogram in a [MetricsSnapshot].
type MetricID = internalmetrics.ID

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricLoginSuccess             = internalmetrics.LoginSuccess
	MetricLoginFailure             = internalmetrics.LoginFailure
	MetricLoginDisabled            = internalmetrics.LoginDisabled
	MetricLoginRateLimited         = internalmetrics.LoginRateLimited
	MetricRefreshSuccess           = internalmetrics.RefreshSuccess
	MetricRefreshFailure           = internalmetrics.RefreshFailure
	MetricRefreshReuseDetected     = internalmetrics.RefreshReuseDetected
	MetricLogoutSuccess            = internalmetrics.LogoutSuccess
	MetricLogoutFailure            = internalmetrics.LogoutFailure
	MetricRegisterSuccess          = internalmetrics.RegisterSuccess
	MetricRegisterDuplicate        = internalmetrics.RegisterDuplicate
	MetricAuthorizeAllowed         = internalmetrics.AuthorizeAllowed
	MetricAuthorizeForbidden       = internalmetrics.AuthorizeForbidden
	MetricAuthorizeUnauthenticated = internalmetrics.AuthorizeUnauthenticated
	MetricAuthorizeDisabled        = internalmetrics.AuthorizeDisabled
	MetricRevocationStoreError     = internalmetrics.RevocationStoreError
	MetricPermissionCacheHit       = internalmetrics.PermissionCacheHit
	MetricPermissionCacheMiss      = internalmetrics.PermissionCacheMiss
	MetricPasswordRehash           = internalmetrics.PasswordRehash
	MetricAccountStatusChange      = internalmetrics.AccountStatusChange
	// MetricAuthorizeLatency is the only histogram.
	MetricAuthorizeLatency = internalmetrics.AuthorizeLatency
)

// MetricsSnapshot returns the current counter values. It is empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return internalmetrics.New(internalmetrics.Config{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type.
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || !e.metrics.Enabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}
