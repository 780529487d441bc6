// Package rate implements the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR, then EXPIRE on the first hit of a window.
// Key prefixes:
//   - rl:login:u:  failed logins per normalized email
//   - rl:login:ip: failed logins per client IP
package rate
