package assistants

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adlbuilder/pkg/storage/storagetest"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

const sampleYAML = "name: helper\ndescription: answers questions\n"

func setup(t *testing.T) (*Store, *sql.DB, int64, int64) {
	t.Helper()
	db := storagetest.NewSQLite(t)
	userStore := users.NewStore(db)
	ctx := context.Background()

	alice := &users.User{Email: "alice@example.com", HashedPassword: "h", Name: "Alice", IsActive: true}
	bob := &users.User{Email: "bob@example.com", HashedPassword: "h", Name: "Bob", IsActive: true}
	require.NoError(t, userStore.Create(ctx, alice))
	require.NoError(t, userStore.Create(ctx, bob))

	return NewStore(db), db, alice.ID, bob.ID
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestStore_CreateAndGet(t *testing.T) {
	store, _, alice, _ := setup(t)
	ctx := context.Background()

	a := &Assistant{
		UserID:      alice,
		Title:       "Helper",
		YAMLContent: sampleYAML,
		IsPublic:    true,
		Tags:        []string{"support", " chat ", "support", ""},
	}
	require.NoError(t, store.Create(ctx, a))
	assert.NotZero(t, a.ID)
	assert.Equal(t, []string{"chat", "support"}, a.Tags)
	assert.False(t, a.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Helper", got.Title)
	assert.Equal(t, sampleYAML, got.YAMLContent)
	assert.Equal(t, alice, got.UserID)
	assert.True(t, got.IsPublic)
	assert.Equal(t, []string{"chat", "support"}, got.Tags)
}

func TestStore_GetMissing(t *testing.T) {
	store, _, _, _ := setup(t)

	_, err := store.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_TagsAreShared(t *testing.T) {
	store, db, alice, bob := setup(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Assistant{UserID: alice, Title: "A", YAMLContent: sampleYAML, Tags: []string{"shared"}}))
	require.NoError(t, store.Create(ctx, &Assistant{UserID: bob, Title: "B", YAMLContent: sampleYAML, Tags: []string{"shared"}}))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tags WHERE name = 'shared'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_ListByOwnerAndPublic(t *testing.T) {
	store, _, alice, bob := setup(t)
	ctx := context.Background()

	for _, a := range []*Assistant{
		{UserID: alice, Title: "alice-public", YAMLContent: sampleYAML, IsPublic: true, Tags: []string{"x"}},
		{UserID: alice, Title: "alice-private", YAMLContent: sampleYAML, IsPublic: false},
		{UserID: bob, Title: "bob-public", YAMLContent: sampleYAML, IsPublic: true, Tags: []string{"y"}},
	} {
		require.NoError(t, store.Create(ctx, a))
	}

	mine, err := store.ListByOwner(ctx, alice, 0, 100)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "alice-public", mine[0].Title)
	assert.Equal(t, []string{"x"}, mine[0].Tags)
	assert.Equal(t, []string{}, mine[1].Tags)

	public, err := store.ListPublic(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "alice-public", public[0].Title)
	assert.Equal(t, "bob-public", public[1].Title)

	page, err := store.ListPublic(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "bob-public", page[0].Title)

	empty, err := store.ListByOwner(ctx, alice, 10, 100)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_Update(t *testing.T) {
	store, _, alice, _ := setup(t)
	ctx := context.Background()

	a := &Assistant{UserID: alice, Title: "Old", YAMLContent: sampleYAML, IsPublic: true, Tags: []string{"one", "two"}}
	require.NoError(t, store.Create(ctx, a))

	t.Run("partial keeps tags", func(t *testing.T) {
		got, err := store.Update(ctx, a.ID, alice, Update{Title: strPtr("New")})
		require.NoError(t, err)
		assert.Equal(t, "New", got.Title)
		assert.Equal(t, sampleYAML, got.YAMLContent)
		assert.True(t, got.IsPublic)
		assert.Equal(t, []string{"one", "two"}, got.Tags)
	})

	t.Run("replaces tags", func(t *testing.T) {
		tags := []string{"three"}
		got, err := store.Update(ctx, a.ID, alice, Update{IsPublic: boolPtr(false), Tags: &tags})
		require.NoError(t, err)
		assert.False(t, got.IsPublic)
		assert.Equal(t, []string{"three"}, got.Tags)

		reloaded, err := store.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"three"}, reloaded.Tags)
		assert.False(t, reloaded.IsPublic)
	})

	t.Run("clears tags", func(t *testing.T) {
		tags := []string{}
		got, err := store.Update(ctx, a.ID, alice, Update{Tags: &tags})
		require.NoError(t, err)
		assert.Empty(t, got.Tags)
	})
}

func TestStore_UpdateNotOwner(t *testing.T) {
	store, _, alice, bob := setup(t)
	ctx := context.Background()

	a := &Assistant{UserID: alice, Title: "Mine", YAMLContent: sampleYAML}
	require.NoError(t, store.Create(ctx, a))

	_, err := store.Update(ctx, a.ID, bob, Update{Title: strPtr("Stolen")})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
}

func TestStore_Delete(t *testing.T) {
	store, db, alice, bob := setup(t)
	ctx := context.Background()

	a := &Assistant{UserID: alice, Title: "Doomed", YAMLContent: sampleYAML, Tags: []string{"t"}}
	require.NoError(t, store.Create(ctx, a))

	assert.ErrorIs(t, store.Delete(ctx, a.ID, bob), ErrNotFound)
	require.NoError(t, store.Delete(ctx, a.ID, alice))
	assert.ErrorIs(t, store.Delete(ctx, a.ID, alice), ErrNotFound)

	var links int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM assistant_tags").Scan(&links))
	assert.Zero(t, links)
}

func TestStore_OwnerDeletionCascades(t *testing.T) {
	store, db, alice, _ := setup(t)
	ctx := context.Background()

	a := &Assistant{UserID: alice, Title: "Orphan", YAMLContent: sampleYAML}
	require.NoError(t, store.Create(ctx, a))

	require.NoError(t, users.NewStore(db).Delete(ctx, alice))

	_, err := store.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM assistants WHERE id").
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))
	_, err = store.GetByID(ctx, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO assistants").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	err = store.Create(ctx, &Assistant{UserID: 1, Title: "x", YAMLContent: "y"})
	assert.ErrorContains(t, err, "disk full")

	mock.ExpectQuery("SELECT (.+) FROM assistants WHERE is_public").
		WillReturnError(errors.New("timeout"))
	_, err = store.ListPublic(ctx, 0, 10)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTags([]string{" a", "b", "a ", "  "}))
	assert.Equal(t, []string{}, NormalizeTags(nil))
}

func TestAssistant_CanView(t *testing.T) {
	public := &Assistant{UserID: 1, IsPublic: true}
	private := &Assistant{UserID: 1}

	assert.True(t, public.CanView(2))
	assert.True(t, private.CanView(1))
	assert.False(t, private.CanView(2))
}
