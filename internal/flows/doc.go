// Package flows contains the orchestration behind every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunLogout, RunRegister,
// RunAuthorize, RunSetActive, RunUpdateProfile) takes a typed dependency
// struct and returns a result carrying a failure kind. The root package maps
// failure kinds to its public errors, metrics and audit events.
//
// Flows hold no state between calls and never import the root package.
// All I/O goes through the dependency interfaces.
package flows
