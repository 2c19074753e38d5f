package docstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

func TestPutAllAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.PutAll([]Document{
		{schema.FieldFile: {"a.html"}, schema.FieldTitle: {"Alpha"}, schema.FieldTags: {"x", "y", "x"}},
		{schema.FieldFile: {"b.html"}},
	}))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	doc, err := r.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "a.html", doc.First(schema.FieldFile))
	assert.Equal(t, "Alpha", doc.First(schema.FieldTitle))
	assert.Equal(t, []string{"x", "y", "x"}, doc.All(schema.FieldTags))

	doc, err = r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "", doc.First(schema.FieldTitle))
	assert.NotNil(t, doc.All(schema.FieldTags))
	assert.Empty(t, doc.All(schema.FieldTags))

	_, err = r.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOnEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.PutAll(nil))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Get(0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadOnlyStoreRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.ErrorIs(t, r.PutAll([]Document{{schema.FieldFile: {"a"}}}), ErrReadOnly)
}
