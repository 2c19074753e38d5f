package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
	"github.com/Phil-Holland/notes-serve/internal/indexer/segment"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
)

var sampleDocs = []Document{
	{File: "alpha.html", Title: "Alpha", Tags: []string{"greek", "letters"}, Content: "first letter of the alphabet"},
	{File: "beta.html", Title: "Beta", Tags: []string{"greek"}, Content: "second letter"},
	{File: "notes/gamma.html", Title: "Gamma rays", Content: "radiation"},
}

func mustBuild(t *testing.T, docs []Document, path string) *Index {
	t.Helper()
	idx, err := Build(context.Background(), docs, path)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func segmentFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), segment.Extension) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestBuildCommitsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	idx := mustBuild(t, sampleDocs, path)

	assert.Equal(t, 3, idx.DocCount())
	assert.NotEmpty(t, idx.BuildID())
	assert.FileExists(t, filepath.Join(path, MetaFileName))
	assert.Len(t, segmentFiles(t, path), 1)

	postings, err := idx.Postings(schema.FieldTags, "greek")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, uint32(0), postings[0].DocID)
	assert.Equal(t, uint32(1), postings[1].DocID)

	file, err := idx.Postings(schema.FieldFile, "notes/gamma.html")
	require.NoError(t, err)
	require.Len(t, file, 1)
	assert.Equal(t, uint32(2), file[0].DocID)

	doc, err := idx.Stored(0)
	require.NoError(t, err)
	assert.Equal(t, "alpha.html", doc.First(schema.FieldFile))
	assert.Equal(t, "Alpha", doc.First(schema.FieldTitle))
	assert.Equal(t, []string{"greek", "letters"}, doc.All(schema.FieldTags))
	_, hasContent := doc[schema.FieldContent]
	assert.False(t, hasContent, "content is indexed but not stored")

	assert.Equal(t, 5, idx.FieldLength(schema.FieldContent, 0))
	assert.InDelta(t, 8.0/3.0, idx.AvgFieldLength(schema.FieldContent), 1e-9)
}

func TestBuildRemovesExistingData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "stale"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "stale", "junk"), []byte("x"), 0o644))

	mustBuild(t, sampleDocs, path)
	assert.NoDirExists(t, filepath.Join(path, "stale"))
}

func TestRebuildLeavesNoResidue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	first, err := Build(context.Background(), sampleDocs, path)
	require.NoError(t, err)
	firstID := first.BuildID()
	require.NoError(t, first.Close())

	second := mustBuild(t, []Document{{File: "delta.html", Title: "Delta", Content: "fourth letter"}}, path)

	assert.NotEqual(t, firstID, second.BuildID())
	assert.Equal(t, 1, second.DocCount())
	assert.Len(t, segmentFiles(t, path), 1)

	postings, err := second.Postings(schema.FieldTags, "greek")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestBuildEmptyBatch(t *testing.T) {
	idx := mustBuild(t, nil, filepath.Join(t.TempDir(), "index"))
	assert.Zero(t, idx.DocCount())
	assert.Zero(t, idx.AvgFieldLength(schema.FieldContent))
	_, err := idx.Stored(0)
	assert.Error(t, err)
}

func TestBuildCancelledLeavesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx, err := Build(ctx, sampleDocs, path)
	require.Error(t, err)
	assert.Nil(t, idx)

	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, StageWriteDocument, be.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, path)
}

func TestOpenWithoutCommit(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	assert.ErrorIs(t, err, ErrNotCommitted)
}

func TestBuildRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	idx, err := Build(context.Background(), sampleDocs, filepath.Join(t.TempDir(), "index"), WithMetrics(m))
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexDocuments))
}

func TestIndexConcurrentReads(t *testing.T) {
	idx := mustBuild(t, sampleDocs, filepath.Join(t.TempDir(), "index"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			postings, err := idx.Postings(schema.FieldTags, "greek")
			assert.NoError(t, err)
			assert.Len(t, postings, 2)
			doc, err := idx.Stored(uint32(i % 3))
			assert.NoError(t, err)
			assert.NotEmpty(t, doc.First(schema.FieldFile))
		}(i)
	}
	wg.Wait()
}
