package internaldefs

import (
	goAuthz "github.com/MrEthical07/goAuthz"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goAuthz.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   goAuthz.MetricID
	Name string
	Help string
}

// AuditDroppedName is the exported name of the audit backpressure counter.
const AuditDroppedName = "goauthz_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAuthz.MetricLoginSuccess, Name: "goauthz_login_success_total", Help: "Successful login attempts."},
	{ID: goAuthz.MetricLoginFailure, Name: "goauthz_login_failure_total", Help: "Failed login attempts."},
	{ID: goAuthz.MetricLoginDisabled, Name: "goauthz_login_disabled_total", Help: "Logins rejected because the account is inactive."},
	{ID: goAuthz.MetricLoginRateLimited, Name: "goauthz_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goAuthz.MetricRefreshSuccess, Name: "goauthz_refresh_success_total", Help: "Successful refresh operations."},
	{ID: goAuthz.MetricRefreshFailure, Name: "goauthz_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: goAuthz.MetricRefreshReuseDetected, Name: "goauthz_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation."},
	{ID: goAuthz.MetricLogoutSuccess, Name: "goauthz_logout_success_total", Help: "Successful logouts."},
	{ID: goAuthz.MetricLogoutFailure, Name: "goauthz_logout_failure_total", Help: "Failed logouts."},
	{ID: goAuthz.MetricRegisterSuccess, Name: "goauthz_register_success_total", Help: "Successful registrations."},
	{ID: goAuthz.MetricRegisterDuplicate, Name: "goauthz_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goAuthz.MetricAuthorizeAllowed, Name: "goauthz_authorize_allowed_total", Help: "Authorization decisions that allowed the request."},
	{ID: goAuthz.MetricAuthorizeForbidden, Name: "goauthz_authorize_forbidden_total", Help: "Authorization decisions denied for missing permissions."},
	{ID: goAuthz.MetricAuthorizeUnauthenticated, Name: "goauthz_authorize_unauthenticated_total", Help: "Authorization attempts with an unusable token."},
	{ID: goAuthz.MetricAuthorizeDisabled, Name: "goauthz_authorize_disabled_total", Help: "Authorization attempts by inactive accounts."},
	{ID: goAuthz.MetricRevocationStoreError, Name: "goauthz_revocation_store_error_total", Help: "Revocation registry failures."},
	{ID: goAuthz.MetricPermissionCacheHit, Name: "goauthz_permission_cache_hit_total", Help: "Permission cache hits."},
	{ID: goAuthz.MetricPermissionCacheMiss, Name: "goauthz_permission_cache_miss_total", Help: "Permission cache misses."},
	{ID: goAuthz.MetricPasswordRehash, Name: "goauthz_password_rehash_total", Help: "Password digests upgraded on login."},
	{ID: goAuthz.MetricAccountStatusChange, Name: "goauthz_account_status_change_total", Help: "Account activations and deactivations."},
}

// Outcome is one attribute value of a Family. Its value is the counter ID
// minus every counter in Subtract, for counters the engine also folds into
// a broader total.
type Outcome struct {
	Value    string
	ID       goAuthz.MetricID
	Subtract []goAuthz.MetricID
}

// Family groups the counters describing the outcomes of one operation so
// exporters with attribute support can publish them as a single instrument.
// An empty Attribute means the family has exactly one unlabelled outcome.
type Family struct {
	Name      string
	Help      string
	Unit      string
	Attribute string
	Outcomes  []Outcome
}

// Families covers every entry of CounterDefs exactly once.
var Families = []Family{
	{
		Name: "goauthz.login", Help: "Login attempts by result.", Unit: "{attempt}", Attribute: "result",
		Outcomes: []Outcome{
			{Value: "success", ID: goAuthz.MetricLoginSuccess},
			{Value: "invalid_credentials", ID: goAuthz.MetricLoginFailure},
			{Value: "disabled", ID: goAuthz.MetricLoginDisabled},
			{Value: "rate_limited", ID: goAuthz.MetricLoginRateLimited},
		},
	},
	{
		Name: "goauthz.refresh", Help: "Refresh exchanges by result.", Unit: "{exchange}", Attribute: "result",
		Outcomes: []Outcome{
			{Value: "success", ID: goAuthz.MetricRefreshSuccess},
			{Value: "rejected", ID: goAuthz.MetricRefreshFailure, Subtract: []goAuthz.MetricID{goAuthz.MetricRefreshReuseDetected}},
			{Value: "reuse_detected", ID: goAuthz.MetricRefreshReuseDetected},
		},
	},
	{
		Name: "goauthz.logout", Help: "Logouts by result.", Unit: "{logout}", Attribute: "result",
		Outcomes: []Outcome{
			{Value: "success", ID: goAuthz.MetricLogoutSuccess},
			{Value: "failure", ID: goAuthz.MetricLogoutFailure},
		},
	},
	{
		Name: "goauthz.register", Help: "Registrations by result.", Unit: "{registration}", Attribute: "result",
		Outcomes: []Outcome{
			{Value: "success", ID: goAuthz.MetricRegisterSuccess},
			{Value: "duplicate", ID: goAuthz.MetricRegisterDuplicate},
		},
	},
	{
		Name: "goauthz.authorize.decisions", Help: "Authorization decisions by outcome.", Unit: "{decision}", Attribute: "outcome",
		Outcomes: []Outcome{
			{Value: "allowed", ID: goAuthz.MetricAuthorizeAllowed},
			{Value: "forbidden", ID: goAuthz.MetricAuthorizeForbidden},
			{Value: "unauthenticated", ID: goAuthz.MetricAuthorizeUnauthenticated},
			{Value: "disabled", ID: goAuthz.MetricAuthorizeDisabled},
		},
	},
	{
		Name: "goauthz.permission_cache.lookups", Help: "Permission cache lookups by result.", Unit: "{lookup}", Attribute: "result",
		Outcomes: []Outcome{
			{Value: "hit", ID: goAuthz.MetricPermissionCacheHit},
			{Value: "miss", ID: goAuthz.MetricPermissionCacheMiss},
		},
	},
	{
		Name: "goauthz.revocation.store_errors", Help: "Revocation registry calls that failed.", Unit: "{error}",
		Outcomes: []Outcome{
			{ID: goAuthz.MetricRevocationStoreError},
		},
	},
	{
		Name: "goauthz.password.rehashes", Help: "Password digests upgraded on login.", Unit: "{digest}",
		Outcomes: []Outcome{
			{ID: goAuthz.MetricPasswordRehash},
		},
	},
	{
		Name: "goauthz.account.status_changes", Help: "Account activations and deactivations.", Unit: "{change}",
		Outcomes: []Outcome{
			{ID: goAuthz.MetricAccountStatusChange},
		},
	},
}

// Resolve returns the value of o in counters, clamped at zero.
func (o Outcome) Resolve(counters map[goAuthz.MetricID]uint64) uint64 {
	v := counters[o.ID]
	for _, id := range o.Subtract {
		sub := counters[id]
		if sub >= v {
			return 0
		}
		v -= sub
	}
	return v
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAuthz.MetricAuthorizeLatency, Name: "goauthz_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, including +Inf, for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// HistogramBoundLabels renders each bucket bound, including +Inf, as an
// attribute value.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
