package notes

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
)

const (
	markdownExt = ".md"
	htmlExt     = ".html"
	fence       = "---"
)

type scanOptions struct {
	renderDir string
	logger    *slog.Logger
}

type ScanOption func(*scanOptions)

// WithRenderDir writes each note rendered as HTML into dir under the name
// recorded in the document's file field.
func WithRenderDir(dir string) ScanOption {
	return func(o *scanOptions) { o.renderDir = dir }
}

// ScanDir turns every *.md file directly inside dir into a document, in
// name order. Notes that cannot be read or parsed are skipped with a
// warning.
func ScanDir(dir string, opts ...ScanOption) ([]indexer.Document, error) {
	o := scanOptions{logger: slog.Default().With("component", "notes")}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading notes directory: %w", err)
	}
	if o.renderDir != "" {
		if err := os.MkdirAll(o.renderDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating render directory: %w", err)
		}
	}

	docs := make([]indexer.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != markdownExt {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		source, err := os.ReadFile(path)
		if err != nil {
			o.logger.Warn("could not process note", "path", path, "error", err)
			continue
		}
		doc, body, err := parseNote(entry.Name(), source)
		if err != nil {
			o.logger.Warn("could not process note", "path", path, "error", err)
			continue
		}
		if o.renderDir != "" {
			if err := renderFile(filepath.Join(o.renderDir, doc.File), doc.Title, body); err != nil {
				o.logger.Warn("could not render note", "path", path, "error", err)
				continue
			}
		}
		docs = append(docs, doc)
	}
	o.logger.Info("notes scanned", "dir", dir, "notes", len(docs))
	return docs, nil
}

// parseNote builds the document of one markdown file and returns the
// markdown body without front matter.
func parseNote(name string, source []byte) (indexer.Document, []byte, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	doc := indexer.Document{
		File:  base + htmlExt,
		Title: base,
		Tags:  []string{},
	}

	meta, body, err := splitFrontMatter(source)
	if err != nil {
		return doc, nil, err
	}
	if meta != nil {
		if title, ok := meta["title"].(string); ok {
			doc.Title = title
		}
		if tags, ok := meta["tags"].([]any); ok {
			for _, tag := range tags {
				if tag != nil {
					doc.Tags = append(doc.Tags, fmt.Sprint(tag))
				}
			}
		}
	}
	doc.Content = plainText(body)
	return doc, body, nil
}

// splitFrontMatter separates a leading YAML block fenced by --- lines from
// the markdown body. meta is nil when there is no front matter.
func splitFrontMatter(source []byte) (map[string]any, []byte, error) {
	src := bytes.TrimPrefix(source, []byte("\ufeff"))
	firstLine, rest, found := bytes.Cut(src, []byte("\n"))
	if !found || strings.TrimSpace(string(firstLine)) != fence {
		return nil, src, nil
	}

	var block []byte
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte("\n"))
		if strings.TrimSpace(string(line)) == fence {
			meta := map[string]any{}
			if err := yaml.Unmarshal(block, &meta); err != nil {
				return nil, nil, fmt.Errorf("parsing front matter: %w", err)
			}
			return meta, rest, nil
		}
		block = append(block, line...)
		block = append(block, '\n')
	}
	return nil, src, nil
}

// plainText strips markdown syntax, keeping the words a reader sees.
func plainText(source []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var b strings.Builder
	space := func() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
	}
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				space()
			}
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				space()
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func renderFile(path, title string, body []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
		html.EscapeString(title))
	if err := goldmark.Convert(body, &buf); err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	buf.WriteString("</body>\n</html>\n")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
