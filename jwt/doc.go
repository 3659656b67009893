// Package jwt issues and verifies the signed bearer tokens used by goAuthz.
//
// Every token carries sub, exp, iat, jti and a "type" claim that separates
// access tokens from refresh tokens. Verification is stateless and returns
// typed errors (ErrMalformed, ErrInvalidSignature, ErrExpired, ErrKindMismatch)
// so callers can map failures without string matching. Revocation is handled
// elsewhere.
package jwt
