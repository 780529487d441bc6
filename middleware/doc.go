// Package middleware adapts boardauth.Engine to echo handlers.
//
// [Authenticate] rejects requests without a valid bearer access token and
// stores the resolved user in the echo context. [OptionalAuthenticate]
// stores the user when a valid token is present and lets anonymous
// requests through. [RequireRole] must run after one of them.
//
// Failures are returned as *boardauth.Error values; the server's error
// handler turns them into responses.
package middleware
