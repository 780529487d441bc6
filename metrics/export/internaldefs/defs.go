package internaldefs

import (
	"github.com/MrEthical07/boardauth"
)

// CounterDef binds a MetricID to its exported name.
type CounterDef struct {
	ID   boardauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   boardauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: boardauth.MetricLoginSuccess, Name: "boardauth_login_success_total", Help: "Successful login attempts."},
	{ID: boardauth.MetricLoginFailure, Name: "boardauth_login_failure_total", Help: "Failed login attempts."},
	{ID: boardauth.MetricLoginRateLimited, Name: "boardauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: boardauth.MetricPasswordHashUpgraded, Name: "boardauth_password_hash_upgraded_total", Help: "Password hashes re-derived with stronger parameters at login."},
	{ID: boardauth.MetricRefreshSuccess, Name: "boardauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: boardauth.MetricRefreshFailure, Name: "boardauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: boardauth.MetricRefreshExpired, Name: "boardauth_refresh_expired_total", Help: "Refresh attempts with an expired stored token."},
	{ID: boardauth.MetricRefreshNotFound, Name: "boardauth_refresh_not_found_total", Help: "Refresh attempts for a user with no stored tokens."},
	{ID: boardauth.MetricLogout, Name: "boardauth_logout_total", Help: "Successful logouts."},
	{ID: boardauth.MetricLogoutFailure, Name: "boardauth_logout_failure_total", Help: "Rejected logouts."},
	{ID: boardauth.MetricRegisterSuccess, Name: "boardauth_register_success_total", Help: "Created accounts."},
	{ID: boardauth.MetricRegisterDuplicate, Name: "boardauth_register_duplicate_total", Help: "Registrations rejected for a taken email or nickname."},
	{ID: boardauth.MetricRegisterFailure, Name: "boardauth_register_failure_total", Help: "Registrations rejected for other reasons."},
	{ID: boardauth.MetricAuthenticateSuccess, Name: "boardauth_authenticate_success_total", Help: "Accepted access tokens."},
	{ID: boardauth.MetricAuthenticateFailure, Name: "boardauth_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: boardauth.MetricRoleDenied, Name: "boardauth_role_denied_total", Help: "Requests rejected by a role check."},
	{ID: boardauth.MetricRefreshTokensPruned, Name: "boardauth_refresh_tokens_pruned_total", Help: "Expired refresh tokens deleted at login."},
	{ID: boardauth.MetricViewCacheHit, Name: "boardauth_view_cache_hit_total", Help: "Post view reads served from Redis."},
	{ID: boardauth.MetricViewCacheMiss, Name: "boardauth_view_cache_miss_total", Help: "Post view reads that fell through to the database."},
	{ID: boardauth.MetricViewWriteThrough, Name: "boardauth_view_write_through_total", Help: "Cached view counts written through to the database."},
	{ID: boardauth.MetricViewSyncRun, Name: "boardauth_view_sync_run_total", Help: "View-count sync sweeps."},
	{ID: boardauth.MetricViewSyncFailure, Name: "boardauth_view_sync_failure_total", Help: "View-count sync sweeps that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: boardauth.MetricAuthenticateLatency, Name: "boardauth_authenticate_latency_seconds", Help: "Access token authentication latency."},
}

// HistogramBounds are the Prometheus "le" labels, matching the engine's
// millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

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

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
