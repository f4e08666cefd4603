package drafts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Perch/internal/client"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(Draft{
		Text:        "half-written thought",
		SpoilerText: "cw",
		Visibility:  client.VisibilityUnlisted,
		Language:    "en",
		InReplyToID: "status-42",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id, "save assigns an id when absent")

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "half-written thought", got.Text)
	assert.Equal(t, "cw", got.SpoilerText)
	assert.Equal(t, client.VisibilityUnlisted, got.Visibility)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "status-42", got.InReplyToID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSave_UpsertsByID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(Draft{Text: "first version"})
	require.NoError(t, err)

	returned, err := store.Save(Draft{ID: id, Text: "second version"})
	require.NoError(t, err)
	assert.Equal(t, id, returned)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "second version", got.Text)

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 1, "resaving must not duplicate the draft")
}

func TestSave_DefaultsVisibility(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(Draft{Text: "no visibility set"})
	require.NoError(t, err)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, client.VisibilityPublic, got.Visibility)
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("no-such-draft")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save(Draft{Text: "one"})
	require.NoError(t, err)
	second, err := store.Save(Draft{Text: "two"})
	require.NoError(t, err)

	all, err := store.List()
	require.NoError(t, err)
	require.Len(t, all, 2)

	ids := []string{all[0].ID, all[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Save(Draft{Text: "temporary"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(id))
	_, err = store.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is not an error
	assert.NoError(t, store.Delete(id))
}
