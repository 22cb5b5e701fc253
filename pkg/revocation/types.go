package revocation

import (
	"context"
	"time"
)

// Entry is one revoked token
type Entry struct {
	TokenID   string    `json:"token_id"`
	OwnerID   int64     `json:"owner_id"`
	Kind      string    `json:"token_kind"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Ledger is the set of revoked token ids
type Ledger interface {
	// Revoke inserts the entry. It reports false without error when the id
	// was already revoked.
	Revoke(ctx context.Context, entry Entry) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeByOwner(ctx context.Context, ownerID int64) (int64, error)
	PurgeRevokedBefore(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error)
}
