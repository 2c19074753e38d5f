package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

func note(file, title string, tags []string, content string) []FieldValues {
	return []FieldValues{
		{Field: schema.FieldFile, Values: []string{file}},
		{Field: schema.FieldTitle, Values: []string{title}},
		{Field: schema.FieldTags, Values: tags},
		{Field: schema.FieldContent, Values: []string{content}},
	}
}

func postingsOf(mi *MemoryIndex, field schema.Field, term string) PostingList {
	for _, e := range mi.Snapshot() {
		if e.Field == field && e.Term == term {
			return e.Postings
		}
	}
	return nil
}

func TestAddDocumentPostingsPerField(t *testing.T) {
	mi := NewMemoryIndex()
	mi.AddDocument(0, note("a.html", "Alpha notes", []string{"work"}, "alpha alpha beta"))
	mi.AddDocument(1, note("b.html", "Beta", []string{"home", "work"}, "gamma"))

	content := postingsOf(mi, schema.FieldContent, "alpha")
	require.Len(t, content, 1)
	assert.Equal(t, uint32(0), content[0].DocID)
	assert.Equal(t, 2, content[0].Frequency)
	assert.Equal(t, []int{0, 1}, content[0].Positions)

	title := postingsOf(mi, schema.FieldTitle, "alpha")
	require.Len(t, title, 1)
	assert.Empty(t, postingsOf(mi, schema.FieldTags, "alpha"))

	work := postingsOf(mi, schema.FieldTags, "work")
	require.Len(t, work, 2)
	assert.Equal(t, uint32(0), work[0].DocID)
	assert.Equal(t, uint32(1), work[1].DocID)

	file := postingsOf(mi, schema.FieldFile, "a.html")
	require.Len(t, file, 1)
	assert.Equal(t, 2, mi.DocCount())
}

func TestRepeatedValuesAreSeparatedByGap(t *testing.T) {
	mi := NewMemoryIndex()
	mi.AddDocument(0, note("a", "", []string{"deep work", "zen"}, ""))

	deep := postingsOf(mi, schema.FieldTags, "deep")
	workP := postingsOf(mi, schema.FieldTags, "work")
	zen := postingsOf(mi, schema.FieldTags, "zen")
	require.Len(t, deep, 1)
	require.Len(t, workP, 1)
	require.Len(t, zen, 1)
	assert.Equal(t, deep[0].Positions[0]+1, workP[0].Positions[0])
	assert.Greater(t, zen[0].Positions[0], workP[0].Positions[0]+1)
}

func TestFieldLengths(t *testing.T) {
	mi := NewMemoryIndex()
	mi.AddDocument(0, note("a", "one two", []string{"x", "y z"}, "a b c d"))
	mi.AddDocument(1, note("b", "", nil, "e"))

	lengths := mi.FieldLengths()
	assert.Equal(t, []uint32{1, 1}, lengths[schema.FieldFile])
	assert.Equal(t, []uint32{2, 0}, lengths[schema.FieldTitle])
	assert.Equal(t, []uint32{3, 0}, lengths[schema.FieldTags])
	assert.Equal(t, []uint32{4, 1}, lengths[schema.FieldContent])
}

func TestSnapshotIsSorted(t *testing.T) {
	mi := NewMemoryIndex()
	mi.AddDocument(0, note("z", "beta alpha", nil, "alpha"))
	mi.AddDocument(1, note("y", "alpha", nil, "gamma"))

	snap := mi.Snapshot()
	require.NotEmpty(t, snap)
	for i := 1; i < len(snap); i++ {
		assert.True(t, snap[i-1].Less(snap[i]), "entry %d out of order", i)
	}
	for _, e := range snap {
		for i := 1; i < len(e.Postings); i++ {
			assert.Less(t, e.Postings[i-1].DocID, e.Postings[i].DocID)
		}
	}
	assert.Equal(t, schema.FieldFile, snap[0].Field)
}

func TestReset(t *testing.T) {
	mi := NewMemoryIndex()
	mi.AddDocument(0, note("a", "t", nil, "c"))
	require.NotZero(t, mi.Size())
	mi.Reset()
	assert.Zero(t, mi.Size())
	assert.Zero(t, mi.DocCount())
	assert.Empty(t, mi.Snapshot())
}

func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mi.AddDocument(uint32(i), note(fmt.Sprintf("doc-%d.html", i), "benchmark title", []string{"bench"},
			"this is a benchmark document with several terms for testing the indexing performance of our memory index"))
	}
}

func BenchmarkMemoryIndexSnapshot(b *testing.B) {
	mi := NewMemoryIndex()
	for i := 0; i < 5000; i++ {
		mi.AddDocument(uint32(i), note(fmt.Sprintf("doc-%d.html", i), "snapshot benchmark", nil,
			"testing snapshot performance with multiple terms and documents"))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = mi.Snapshot()
	}
}
