// Package auth implements password verification and the JWT access/refresh
// token lifecycle for the ADL Builder API.
//
// # Overview
//
// Codec signs and verifies HMAC JWTs. Issuer mints a pair of tokens (a
// short-lived access token and a longer-lived refresh token) that share a
// subject and differ in jti, type and expiry. Gate is the single
// authentication path used by every protected endpoint and by refresh; it is
// parameterized by the token type it expects. Sessions builds login, logout
// and refresh on top of the gate and the revocation ledger.
//
// # Usage
//
//	codec, err := auth.NewCodec(auth.CodecConfig{
//		Secret: cfg.Auth.SecretKey,
//		Issuer: "adlbuilder",
//	})
//	issuer, err := auth.NewIssuer(codec, 15*time.Minute, 7*24*time.Hour)
//	gate := auth.NewGate(codec, ledger, userStore, logger, metrics)
//	sessions := auth.NewSessions(issuer, gate, ledger, userStore, auth.NewPasswordHasher(0), logger, metrics)
//
//	pair, err := sessions.Login(ctx, email, password)
//	identity, err := gate.Authenticate(ctx, pair.AccessToken, auth.TokenTypeAccess)
//
// # Errors
//
// Every token rejection (bad signature, expiry, wrong type, revoked, unknown
// or stale subject) returns ErrInvalidCredentials so callers cannot learn
// which check failed. A disabled account returns ErrInactiveAccount. Ledger
// and user store failures are returned wrapped and must be treated as
// internal errors.
//
// # Token lifetime
//
// A token is Active until it is revoked (logout, refresh) or expires. Refresh
// revokes the presented refresh token before issuing a new pair, which makes
// it single use. The access token issued alongside it is not revoked and
// stays valid until its own expiry.
//
// Changing a password or deleting an account stores a cutoff on the user
// (see RevokeBefore); the gate rejects tokens issued before it.
package auth
