// Package boardauth is the authentication and session core of the board API:
// JWT access tokens, single-use refresh tokens stored as Argon2 hashes,
// registration with a password policy, and a single role check.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// boardauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([TokenPair], [User], [MetricsSnapshot]). Flow orchestration,
// rate limiting and audit dispatch live under internal/. Persistence goes
// through the store repositories, always inside one uow.UnitOfWork per
// operation, so a failed step never leaves a half-rotated session behind.
//
// # Session lifecycle
//
// Login issues a pair and persists the refresh hash. Refresh deletes every
// refresh row of the user and issues a new pair, so a replayed refresh token
// finds no matching row. A matched but expired row revokes the user's rows
// and that revocation is committed even though the call fails. Logout
// deletes every row of the token's subject.
//
// # Errors
//
// Domain failures are *[Error] values with a stable Code; compare them with
// errors.Is against the Err* sentinels. Anything else is an infrastructure
// fault and should be reported as an internal error.
package boardauth
