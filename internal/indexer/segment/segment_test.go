package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phil-Holland/notes-serve/internal/indexer/index"
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

func buildSnapshot() (*index.MemoryIndex, []index.TermEntry) {
	mi := index.NewMemoryIndex()
	mi.AddDocument(0, []index.FieldValues{
		{Field: schema.FieldFile, Values: []string{"a.html"}},
		{Field: schema.FieldTitle, Values: []string{"alpha"}},
		{Field: schema.FieldContent, Values: []string{"alpha beta beta"}},
	})
	mi.AddDocument(1, []index.FieldValues{
		{Field: schema.FieldFile, Values: []string{"b.html"}},
		{Field: schema.FieldTags, Values: []string{"alpha"}},
		{Field: schema.FieldContent, Values: []string{"gamma"}},
	})
	return mi, mi.Snapshot()
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	mi, entries := buildSnapshot()

	name, err := NewWriter(dir).Write(entries, mi.FieldLengths(), mi.DocCount())
	require.NoError(t, err)
	assert.Equal(t, Extension, filepath.Ext(name))

	_, err = os.Stat(filepath.Join(dir, name+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(2), r.DocCount())
	assert.Equal(t, len(entries), r.Terms())

	postings, err := r.Search(schema.FieldContent, "beta")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, uint32(0), postings[0].DocID)
	assert.Equal(t, 2, postings[0].Frequency)
	assert.Equal(t, []int{1, 2}, postings[0].Positions)

	title, err := r.Search(schema.FieldTitle, "alpha")
	require.NoError(t, err)
	require.Len(t, title, 1)
	assert.Equal(t, uint32(0), title[0].DocID)

	tags, err := r.Search(schema.FieldTags, "alpha")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, uint32(1), tags[0].DocID)

	missing, err := r.Search(schema.FieldTags, "beta")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, 3, r.FieldLength(schema.FieldContent, 0))
	assert.Equal(t, 1, r.FieldLength(schema.FieldContent, 1))
	assert.Equal(t, 0, r.FieldLength(schema.FieldContent, 7))
	assert.Equal(t, int64(4), r.TotalFieldLength(schema.FieldContent))
}

func TestWriteEmptySegment(t *testing.T) {
	dir := t.TempDir()
	mi := index.NewMemoryIndex()

	name, err := NewWriter(dir).Write(mi.Snapshot(), mi.FieldLengths(), 0)
	require.NoError(t, err)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()
	assert.Zero(t, r.DocCount())
	assert.Zero(t, r.Terms())
	postings, err := r.Search(schema.FieldContent, "anything")
	require.NoError(t, err)
	assert.Nil(t, postings)
}

func TestOpenReaderRejectsCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.spdx")
	require.NoError(t, os.WriteFile(bad, make([]byte, HeaderSize+FooterSize), 0o644))
	_, err := OpenReader(bad)
	assert.ErrorContains(t, err, "bad magic")

	mi, entries := buildSnapshot()
	name, err := NewWriter(dir).Write(entries, mi.FieldLengths(), mi.DocCount())
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r, err := OpenReader(path)
	require.NoError(t, err)
	dictOffset := r.header.DictOffset
	require.NoError(t, r.Close())

	data[dictOffset+1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))
	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "checksum")
}

func TestOpenReaderMissingFile(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "nope.spdx"))
	assert.Error(t, err)
}
