// Package revocation keeps the set of tokens that were revoked before their
// natural expiry.
//
// Entries live in Redis under a private prefix (token_blacklist: by default)
// keyed by the SHA-256 of the token, with a TTL equal to the token's remaining
// lifetime, so the set never outgrows the population of live tokens.
//
// When Redis cannot answer, IsRevoked follows a single FailurePolicy. The
// default is FailClosed: an unreachable store denies access.
package revocation
