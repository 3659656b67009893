// Package goAuthz provides a credential-based authentication and role-based
// authorization engine.
//
// Users log in with a username and password and receive a short-lived access
// token and, when they ask to be remembered, a refresh token. Protected
// operations call [Engine.Authorize] or a guard built by [Engine.Guard],
// which verifies the access token, checks it against the Redis revocation
// registry, resolves the user's permissions through their roles and
// evaluates a [Policy].
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// goAuthz is the public surface. Persistence sits behind [Store]; the
// store/memory, store/postgres and store/sqlite packages provide
// implementations. Flow orchestration, rate limiting, audit dispatch and
// metrics live under internal/ and are not exported.
//
// # Failure reporting
//
// Every operation returns one of the sentinel errors in this package. Use
// [ErrorCode] and [HTTPStatus] to map them onto a transport. Login failures
// for an unknown user, a wrong password and a malformed username are
// indistinguishable to callers.
package goAuthz
