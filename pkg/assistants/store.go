package assistants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const assistantColumns = `id, user_id, title, yaml_content, is_public, created_at, updated_at`

// Store persists assistants in the assistants, tags and assistant_tags tables
type Store struct {
	db *sql.DB
}

// NewStore creates a new assistant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a and its tags in one transaction
func (s *Store) Create(ctx context.Context, a *Assistant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Tags = NormalizeTags(a.Tags)

	query := `
		INSERT INTO assistants (user_id, title, yaml_content, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query,
		a.UserID, a.Title, a.YAMLContent, a.IsPublic, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID); err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}

	if err := attachTags(ctx, tx, a.ID, a.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assistant: %w", err)
	}
	sort.Strings(a.Tags)
	return nil
}

// GetByID returns the assistant with the given id or ErrNotFound
func (s *Store) GetByID(ctx context.Context, id int64) (*Assistant, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+assistantColumns+" FROM assistants WHERE id = $1", id)
	a, err := scanAssistant(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, []*Assistant{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByOwner returns the user's assistants ordered by id
func (s *Store) ListByOwner(ctx context.Context, userID int64, skip, limit int) ([]*Assistant, error) {
	return s.list(ctx, "WHERE user_id = $1", []interface{}{userID}, skip, limit)
}

// ListPublic returns every public assistant ordered by id
func (s *Store) ListPublic(ctx context.Context, skip, limit int) ([]*Assistant, error) {
	return s.list(ctx, "WHERE is_public = $1", []interface{}{true}, skip, limit)
}

func (s *Store) list(ctx context.Context, where string, args []interface{}, skip, limit int) ([]*Assistant, error) {
	args = append(args, limit, skip)
	query := fmt.Sprintf("SELECT %s FROM assistants %s ORDER BY id LIMIT $%d OFFSET $%d",
		assistantColumns, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	defer rows.Close()

	result := []*Assistant{}
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assistants: %w", err)
	}

	if err := s.loadTags(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies up to the assistant if ownerID owns it. Missing and foreign
// assistants both return ErrNotFound.
func (s *Store) Update(ctx context.Context, id, ownerID int64, up Update) (*Assistant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+assistantColumns+" FROM assistants WHERE id = $1 AND user_id = $2", id, ownerID)
	a, err := scanAssistant(row)
	if err != nil {
		return nil, err
	}

	up.Apply(a)
	a.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
		UPDATE assistants
		SET title = $1, yaml_content = $2, is_public = $3, updated_at = $4
		WHERE id = $5
	`, a.Title, a.YAMLContent, a.IsPublic, a.UpdatedAt, a.ID); err != nil {
		return nil, fmt.Errorf("failed to update assistant: %w", err)
	}

	if up.Tags != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM assistant_tags WHERE assistant_id = $1", a.ID); err != nil {
			return nil, fmt.Errorf("failed to clear tags: %w", err)
		}
		if err := attachTags(ctx, tx, a.ID, a.Tags); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assistant: %w", err)
	}

	if up.Tags == nil {
		if err := s.loadTags(ctx, []*Assistant{a}); err != nil {
			return nil, err
		}
	} else {
		sort.Strings(a.Tags)
	}
	return a, nil
}

// Delete removes the assistant if ownerID owns it; tag links cascade
func (s *Store) Delete(ctx context.Context, id, ownerID int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM assistants WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete assistant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func attachTags(ctx context.Context, tx *sql.Tx, assistantID int64, tags []string) error {
	for _, name := range tags {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name); err != nil {
			return fmt.Errorf("failed to create tag %q: %w", name, err)
		}

		var tagID int64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = $1", name).Scan(&tagID); err != nil {
			return fmt.Errorf("failed to look up tag %q: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO assistant_tags (assistant_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			assistantID, tagID); err != nil {
			return fmt.Errorf("failed to tag assistant: %w", err)
		}
	}
	return nil
}

// loadTags fills Tags for every assistant with a single query, names sorted
func (s *Store) loadTags(ctx context.Context, list []*Assistant) error {
	if len(list) == 0 {
		return nil
	}

	byID := make(map[int64]*Assistant, len(list))
	placeholders := make([]string, len(list))
	args := make([]interface{}, len(list))
	for i, a := range list {
		a.Tags = []string{}
		byID[a.ID] = a
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = a.ID
	}

	query := fmt.Sprintf(`
		SELECT at.assistant_id, t.name
		FROM assistant_tags at
		JOIN tags t ON t.id = at.tag_id
		WHERE at.assistant_id IN (%s)
		ORDER BY at.assistant_id, t.name
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			assistantID int64
			name        string
		)
		if err := rows.Scan(&assistantID, &name); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if a, ok := byID[assistantID]; ok {
			a.Tags = append(a.Tags, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tags: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssistant(row rowScanner) (*Assistant, error) {
	var a Assistant
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.YAMLContent, &a.IsPublic, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assistant: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}
