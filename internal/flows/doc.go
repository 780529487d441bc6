// Package flows holds the orchestration of every Engine operation: login,
// refresh rotation, logout, registration and access-token authentication.
//
// Each Run function takes a typed dependency struct and returns a result
// carrying a FailureKind; the root package maps kinds to its public errors,
// metrics and audit events. Persistence is reached only through the Tx
// handed out by a Transactor, so a flow's writes commit or roll back
// together.
//
// This package must not import the root package and holds no state between
// calls.
package flows
