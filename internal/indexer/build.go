package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Phil-Holland/notes-serve/internal/indexer/docstore"
	"github.com/Phil-Holland/notes-serve/internal/indexer/index"
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
	"github.com/Phil-Holland/notes-serve/internal/indexer/segment"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
)

// Document is one note handed to the builder. Absent values are simply
// empty.
type Document struct {
	File    string   `json:"file"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
}

func (d Document) fieldValues() []index.FieldValues {
	return []index.FieldValues{
		{Field: schema.FieldFile, Values: []string{d.File}},
		{Field: schema.FieldTitle, Values: []string{d.Title}},
		{Field: schema.FieldTags, Values: d.Tags},
		{Field: schema.FieldContent, Values: []string{d.Content}},
	}
}

// Stage names the step of a build that failed.
type Stage string

const (
	StageRemoveDir     Stage = "remove_dir"
	StageCreateDir     Stage = "create_dir"
	StageCreateIndex   Stage = "create_index"
	StageWriteDocument Stage = "write_document"
	StageCommit        Stage = "commit"
	StageOpenReader    Stage = "open_reader"
)

// BuildError reports a failed build. Every build failure is fatal; the
// target directory must be treated as garbage.
type BuildError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building index at %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

type buildOptions struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// BuildOption customises Build.
type BuildOption func(*buildOptions)

// WithLogger sets the logger used during the build.
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// WithMetrics records build counters and timings into m.
func WithMetrics(m *metrics.Metrics) BuildOption {
	return func(o *buildOptions) { o.metrics = m }
}

// Build replaces whatever is at path with a fresh index of docs, commits
// it, and returns a read-only handle to the committed index. Documents get
// ids in input order.
//
// Nothing is visible to Open until the commit marker is renamed into place.
// On failure Build removes path on a best-effort basis and returns a
// *BuildError.
func Build(ctx context.Context, docs []Document, path string, opts ...BuildOption) (*Index, error) {
	o := buildOptions{logger: slog.Default().With("component", "indexer")}
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()

	idx, err := build(ctx, docs, path, o.logger)
	if err != nil {
		var be *BuildError
		if !errors.As(err, &be) || be.Stage != StageRemoveDir {
			if rmErr := os.RemoveAll(path); rmErr != nil {
				o.logger.Warn("cleaning up failed build", "path", path, "error", rmErr)
			}
		}
		o.logger.Error("index build failed", "path", path, "error", err)
		if o.metrics != nil {
			o.metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	elapsed := time.Since(start)
	o.logger.Info("index committed",
		"path", path,
		"build_id", idx.BuildID(),
		"docs", idx.DocCount(),
		"terms", idx.segment.Terms(),
		"duration", elapsed,
	)
	if o.metrics != nil {
		o.metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
		o.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
		o.metrics.DocsIndexedTotal.Add(float64(len(docs)))
		o.metrics.IndexDocuments.Set(float64(len(docs)))
	}
	return idx, nil
}

func build(ctx context.Context, docs []Document, path string, logger *slog.Logger) (*Index, error) {
	fail := func(stage Stage, err error) (*Index, error) {
		return nil, &BuildError{Stage: stage, Path: path, Err: err}
	}

	if err := os.RemoveAll(path); err != nil {
		return fail(StageRemoveDir, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fail(StageCreateDir, err)
	}
	if uint64(len(docs)) > math.MaxUint32 {
		return fail(StageWriteDocument, fmt.Errorf("too many documents: %d", len(docs)))
	}

	store, err := docstore.Create(filepath.Join(path, docstore.FileName))
	if err != nil {
		return fail(StageCreateIndex, err)
	}
	defer store.Close()

	mem := index.NewMemoryIndex()
	stored := make([]docstore.Document, 0, len(docs))
	for i, doc := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fail(StageWriteDocument, err)
			}
		}
		fields := doc.fieldValues()
		mem.AddDocument(uint32(i), fields)
		stored = append(stored, storedValues(fields))
	}
	logger.Debug("documents analysed", "docs", mem.DocCount(), "mem_size", mem.Size())

	segmentName, err := segment.NewWriter(path).Write(mem.Snapshot(), mem.FieldLengths(), mem.DocCount())
	if err != nil {
		return fail(StageWriteDocument, err)
	}
	mem.Reset()
	if err := store.PutAll(stored); err != nil {
		return fail(StageWriteDocument, err)
	}
	if err := store.Close(); err != nil {
		return fail(StageCommit, err)
	}

	meta := Meta{
		Version:   MetaVersion,
		BuildID:   uuid.NewString(),
		Segment:   segmentName,
		DocCount:  len(docs),
		CreatedAt: time.Now().UTC(),
	}
	if err := writeMeta(path, meta); err != nil {
		return fail(StageCommit, err)
	}

	idx, err := Open(path)
	if err != nil {
		return fail(StageOpenReader, err)
	}
	return idx, nil
}

func storedValues(fields []index.FieldValues) docstore.Document {
	doc := make(docstore.Document, len(fields))
	for _, fv := range fields {
		if !fv.Field.Stored() || len(fv.Values) == 0 {
			continue
		}
		values := make([]string, len(fv.Values))
		copy(values, fv.Values)
		doc[fv.Field] = values
	}
	return doc
}

func writeMeta(dir string, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	finalPath := filepath.Join(dir, MetaFileName)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating meta file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing meta file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing meta file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing meta file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming meta file: %w", err)
	}
	return nil
}
