package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
	"github.com/Phil-Holland/notes-serve/internal/notes"
	"github.com/Phil-Holland/notes-serve/internal/server"
	"github.com/Phil-Holland/notes-serve/pkg/config"
	"github.com/Phil-Holland/notes-serve/pkg/logger"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
)

// options holds the command line flags. Flags that were set explicitly win
// over the config file and the environment.
type options struct {
	configPath  string
	summaryFile string
	notesDir    string
	htmlDir     string
	staticDir   string
	indexDir    string
	port        int
	logLevel    string
	reuseIndex  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "notes-serve",
		Short: "Index a set of notes and serve them with full-text search.",
		Long: `notes-serve builds a full-text index of your notes at startup and serves
the rendered notes together with a search API.

Notes come either from a summary file written by a renderer, a JSON array of
{file, title, tags, content} records, or straight from a directory of
markdown files with optional YAML front matter.`,
		Example: `  notes-serve -s summary.json -d html
  notes-serve --notes_dir ~/notes --port 8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVarP(&opts.summaryFile, "summary_file", "s", "", "JSON summary of the rendered notes")
	flags.StringVar(&opts.notesDir, "notes_dir", "", "directory of markdown notes, used when no summary file is given")
	flags.StringVarP(&opts.htmlDir, "html_dir", "d", "", "directory of rendered note HTML")
	flags.StringVar(&opts.indexDir, "index_dir", "", "where the index is built (default ./.index)")
	flags.StringVar(&opts.logLevel, "log_level", "", "debug, info, warn or error")
	root.Flags().StringVar(&opts.staticDir, "static_dir", "", "directory of the search front end (default static)")
	root.Flags().IntVarP(&opts.port, "port", "p", 0, "HTTP port (default 8000)")
	root.Flags().BoolVar(&opts.reuseIndex, "reuse_index", false, "serve the index already committed in index_dir instead of rebuilding")

	root.AddCommand(newBuildCmd(opts), newSearchCmd(opts))
	return root
}

// loadConfig reads the config file and environment, then applies the flags
// that were set on cmd.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("summary_file") {
		cfg.Notes.SummaryFile = opts.summaryFile
	}
	if flags.Changed("notes_dir") {
		cfg.Notes.Dir = opts.notesDir
	}
	if flags.Changed("html_dir") {
		cfg.Notes.HTMLDir = opts.htmlDir
	}
	if flags.Changed("static_dir") {
		cfg.Notes.StaticDir = opts.staticDir
	}
	if flags.Changed("index_dir") {
		cfg.Index.Dir = opts.indexDir
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if flags.Changed("log_level") {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cmd.HasParent() {
		// Subcommands print results on stdout.
		slog.SetDefault(logger.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
	} else {
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	}
	return cfg, nil
}

// loadNotes returns the documents to index. Markdown notes are rendered
// into notes.htmlDir, or next to the index when it is unset, and
// cfg.Notes.HTMLDir is updated to point there.
func loadNotes(cfg *config.Config) ([]indexer.Document, error) {
	if err := cfg.Notes.Validate(); err != nil {
		return nil, err
	}
	if cfg.Notes.SummaryFile != "" {
		return notes.LoadSummary(cfg.Notes.SummaryFile)
	}

	if cfg.Notes.HTMLDir == "" {
		cfg.Notes.HTMLDir = cfg.Index.Dir + "-html"
	}
	return notes.ScanDir(cfg.Notes.Dir, notes.WithRenderDir(cfg.Notes.HTMLDir))
}

// buildIndex loads the notes and builds a fresh index of them.
func buildIndex(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*indexer.Index, error) {
	docs, err := loadNotes(cfg)
	if err != nil {
		return nil, err
	}
	return indexer.Build(ctx, docs, cfg.Index.Dir, indexer.WithMetrics(m))
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}

	var idx *indexer.Index
	if opts.reuseIndex {
		idx, err = indexer.Open(cfg.Index.Dir)
	} else {
		idx, err = buildIndex(ctx, cfg, m)
	}
	if err != nil {
		return err
	}
	defer idx.Close()
	if m != nil {
		m.IndexDocuments.Set(float64(idx.DocCount()))
	}
	slog.Info("index ready", "dir", cfg.Index.Dir, "build_id", idx.BuildID(), "documents", idx.DocCount())

	srv, err := server.New(ctx, cfg, idx, m)
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.Run(ctx)
}

var errSearchFailed = errors.New("search failed")
