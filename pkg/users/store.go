package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/adlbuilder/pkg/storage"
)

const userColumns = `id, email, hashed_password, name, role, organization, contact,
	is_active, is_admin, tokens_valid_after, created_at, updated_at`

// Store persists users in the users table
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a user. The first user ever registered becomes an admin.
func (s *Store) Create(ctx context.Context, u *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&existing); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if existing == 0 {
		u.IsAdmin = true
	}

	if u.Contact == "" {
		u.Contact = u.Email
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users (email, hashed_password, name, role, organization, contact,
			is_active, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		u.Email, u.HashedPassword, u.Name, u.Role, u.Organization, u.Contact,
		u.IsActive, u.IsAdmin, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

// GetByID returns the user with the given id or ErrNotFound
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email or ErrNotFound
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// Update writes the mutable profile and flag columns of u
func (s *Store) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, name = $2, role = $3, organization = $4, contact = $5,
			is_active = $6, is_admin = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := s.db.ExecContext(ctx, query,
		u.Email, u.Name, u.Role, u.Organization, u.Contact,
		u.IsActive, u.IsAdmin, u.UpdatedAt, u.ID,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(result)
}

// SetPassword stores a new password hash and moves the token cutoff to
// validAfter so tokens issued earlier stop authenticating.
func (s *Store) SetPassword(ctx context.Context, id int64, hashedPassword string, validAfter time.Time) error {
	query := `
		UPDATE users
		SET hashed_password = $1, tokens_valid_after = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, hashedPassword, validAfter.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return requireRow(result)
}

// SetAdmin flips the admin flag and returns the updated user
func (s *Store) SetAdmin(ctx context.Context, id int64, admin bool) (*User, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_admin = $1, updated_at = $2 WHERE id = $3",
		admin, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update admin flag: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes the user; their assistants cascade
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRow(result)
}

// List returns users ordered by id, optionally filtered by a case-insensitive
// match on name or email.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*User, error) {
	where, args := searchClause(opts.Search)
	args = append(args, opts.Limit, opts.Skip)

	query := fmt.Sprintf("SELECT %s FROM users %s ORDER BY id LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return result, nil
}

// Count returns the number of users matching search
func (s *Store) Count(ctx context.Context, search string) (int64, error) {
	where, args := searchClause(search)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

func searchClause(search string) (string, []interface{}) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}
	pattern := "%" + strings.ToLower(search) + "%"
	return "WHERE LOWER(name) LIKE $1 OR LOWER(email) LIKE $1", []interface{}{pattern}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u          User
		validAfter sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.HashedPassword, &u.Name, &u.Role, &u.Organization, &u.Contact,
		&u.IsActive, &u.IsAdmin, &validAfter, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if validAfter.Valid {
		t := validAfter.Time.UTC()
		u.TokensValidAfter = &t
	}
	return &u, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
