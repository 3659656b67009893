// Package rate implements Redis fixed-window counters for login and
// registration throttling.
//
// Each window is an INCR with an EXPIRE set on the first hit. Keys:
//   - authz:rl:login:<username>
//   - authz:rl:login-ip:<ip>
//   - authz:rl:register-ip:<ip>
package rate
