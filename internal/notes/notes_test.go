package notes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	writeFile(t, path, `[
		{"file": "a.html", "title": "A", "tags": ["x", "y"], "content": "alpha"},
		{"file": "b.html", "title": "B", "tags": null, "content": ""}
	]`)

	docs, err := LoadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, []indexer.Document{
		{File: "a.html", Title: "A", Tags: []string{"x", "y"}, Content: "alpha"},
		{File: "b.html", Title: "B"},
	}, docs)
}

func TestLoadSummaryErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSummary(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"file": "a.html"}`)
	_, err = LoadSummary(bad)
	assert.ErrorContains(t, err, "parsing summary file")
}

func TestParseNoteFrontMatter(t *testing.T) {
	doc, body, err := parseNote("trip.md", []byte("---\ntitle: Road Trip\ntags:\n  - travel\n  - 2024\n---\n# Day one\n\nWe drove *far*.\n"))
	require.NoError(t, err)
	assert.Equal(t, "trip.html", doc.File)
	assert.Equal(t, "Road Trip", doc.Title)
	assert.Equal(t, []string{"travel", "2024"}, doc.Tags)
	assert.Equal(t, "Day one We drove far.", doc.Content)
	assert.Equal(t, "# Day one\n\nWe drove *far*.\n", string(body))
}

func TestParseNoteDefaults(t *testing.T) {
	doc, _, err := parseNote("plain.md", []byte("just text\n"))
	require.NoError(t, err)
	assert.Equal(t, "plain.html", doc.File)
	assert.Equal(t, "plain", doc.Title)
	assert.NotNil(t, doc.Tags)
	assert.Empty(t, doc.Tags)
	assert.Equal(t, "just text", doc.Content)

	doc, _, err = parseNote("typed.md", []byte("---\ntitle: [not, a, string]\ntags: solo\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "typed", doc.Title, "a non-string title is ignored")
	assert.Empty(t, doc.Tags, "tags must be a list")
}

func TestSplitFrontMatter(t *testing.T) {
	meta, body, err := splitFrontMatter([]byte("---\ntitle: x\nno closing fence\n"))
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, "---\ntitle: x\nno closing fence\n", string(body))

	meta, body, err = splitFrontMatter([]byte("text\n---\nmore\n"))
	require.NoError(t, err)
	assert.Nil(t, meta, "a rule later in the note is not front matter")
	assert.Equal(t, "text\n---\nmore\n", string(body))

	_, _, err = splitFrontMatter([]byte("---\ntitle: [unclosed\n---\n"))
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	src := "# Heading\n\nSome *emphasis* and `code` with [a link](http://example.com).\n\n" +
		"- item one\n- item two\n\n```go\nfmt.Println()\n```\n\n<div>raw html</div>\n"
	assert.Equal(t, "Heading Some emphasis and code with a link. item one item two fmt.Println()", plainText([]byte(src)))
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "second note\n")
	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: First\ntags: [one]\n---\nfirst note\n")
	writeFile(t, filepath.Join(dir, "bad.md"), "---\ntitle: [unclosed\n---\nbroken\n")
	writeFile(t, filepath.Join(dir, "readme.txt"), "not a note")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0o755))

	docs, err := ScanDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, indexer.Document{File: "a.html", Title: "First", Tags: []string{"one"}, Content: "first note"}, docs[0])
	assert.Equal(t, "b.html", docs[1].File)
	assert.Equal(t, "b", docs[1].Title)
}

func TestScanDirRenders(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "html")
	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A & B\n---\n# Hello\n")

	docs, err := ScanDir(dir, WithRenderDir(out))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	html, err := os.ReadFile(filepath.Join(out, "a.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>A &amp; B</title>")
	assert.Contains(t, string(html), "<h1>Hello</h1>")
}

func TestScanDirMissing(t *testing.T) {
	_, err := ScanDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
