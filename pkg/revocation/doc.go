// Package revocation keeps the ledger of tokens revoked before their natural
// expiry.
//
// # Overview
//
// Logout revokes the presented access token and refresh rotation revokes the
// consumed refresh token. Each revocation is one row in revoked_tokens keyed by
// the token's jti, carrying the owner, the token kind and the token's own
// expiry. Rows are never updated. They disappear when the janitor purges
// entries past their expiry, or when every entry of an owner is purged after a
// credential change.
//
// The unique constraint on token_id makes Revoke idempotent: a second insert of
// the same id is a no-op and reports that nothing new was revoked.
//
// # Usage
//
//	ledger := revocation.NewStore(db)
//	newly, err := ledger.Revoke(ctx, revocation.Entry{
//		TokenID:   claims.ID,
//		OwnerID:   userID,
//		Kind:      "refresh",
//		ExpiresAt: claims.ExpiresAt.Time,
//	})
//
//	revoked, err := ledger.IsRevoked(ctx, claims.ID)
//
// # Caching
//
// CachedLedger remembers ids recently confirmed as NOT revoked in a bounded
// expirable LRU. Revoke drops the id from the cache, and a lookup that raced
// with a revocation never populates it, so a revoked token is never reported
// as valid from cache.
//
// # Purging
//
// Janitor runs PurgeExpired on a cron schedule or once on demand. Purging an
// expired entry changes nothing observable since the token already fails its
// own expiry check.
package revocation
