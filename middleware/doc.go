// Package middleware adapts goAuthz.Engine authorization to net/http.
//
// # Guards
//
//   - [Guard] enforces an arbitrary permission.Policy.
//   - [RequireAuthenticated], [RequireAny] and [RequireAll] cover the common policies.
//   - [GuardFunc] wraps an AuthorizeFunc built elsewhere.
//
// Each guard reads the Authorization header, calls the engine and stores the
// resulting goAuthz.AuthResult in the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse
// tokens or touch Redis; every decision is delegated to the engine.
package middleware
