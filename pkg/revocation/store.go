package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store is the SQL backed Ledger
type Store struct {
	db *sql.DB
}

// NewStore creates a new revocation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Revoke inserts the entry unless its token id is already present
func (s *Store) Revoke(ctx context.Context, entry Entry) (bool, error) {
	if entry.TokenID == "" {
		return false, fmt.Errorf("token id is required")
	}
	revokedAt := entry.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = time.Now()
	}

	query := `
		INSERT INTO revoked_tokens (token_id, owner_id, token_kind, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		entry.TokenID, entry.OwnerID, entry.Kind, entry.ExpiresAt.UTC(), revokedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// IsRevoked reports whether tokenID is in the ledger
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM revoked_tokens WHERE token_id = $1", tokenID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return true, nil
}

// PurgeExpired deletes every entry with expires_at strictly before now
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at < $1", now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// PurgeRevokedBefore deletes the entries of ownerID revoked strictly before
// cutoff. A token revoked before cutoff was also issued before it, so the
// credential cutoff keeps rejecting it without the row.
func (s *Store) PurgeRevokedBefore(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE owner_id = $1 AND revoked_at < $2", ownerID, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge superseded tokens for owner %d: %w", ownerID, err)
	}
	return result.RowsAffected()
}

// PurgeByOwner deletes every entry owned by ownerID
func (s *Store) PurgeByOwner(ctx context.Context, ownerID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE owner_id = $1", ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tokens for owner %d: %w", ownerID, err)
	}
	return result.RowsAffected()
}
