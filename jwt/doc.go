// Package jwt issues and decodes the HS256 access and refresh tokens used by
// boardauth.
//
// Every token carries sub, type, exp, iat and a random jti; access tokens
// also carry the user's role. [Codec.Decode] enforces signature, algorithm
// and expiry. It deliberately leaves the type check to the caller so that the
// caller decides which type an endpoint accepts.
package jwt
