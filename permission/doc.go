// Package permission evaluates role-based access policies.
//
// A [Policy] names the permission codes (and optionally role codes) a
// protected entry point requires. [MatchAny] admits a user holding at least
// one of them and is what coarse route guards use; [MatchAll] is for
// endpoints that need a compound grant.
//
// [Registry] and [RoleManager] describe the permissions and roles an
// application declares at startup. [Cache] memoizes resolved permission sets
// for a short TTL.
//
// This package does no I/O. Permission sets are loaded by the engine from the
// credential store.
package permission
