package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
	"github.com/Phil-Holland/notes-serve/internal/searcher"
)

func newSearchCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Query a committed index and print the results as JSON.",
		Example: `  notes-serve search 'tags:recipes -title:"banana bread"'
  notes-serve search --limit 5 rocket launch`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			idx, err := indexer.Open(cfg.Index.Dir)
			if err != nil {
				return err
			}
			defer idx.Close()

			engine := searcher.New(idx)
			query := strings.Join(args, " ")
			if err := engine.Validate(query); err != nil {
				return err
			}
			results, ok := engine.Search(cmd.Context(), query, limit)
			if !ok {
				return errSearchFailed
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	return cmd
}
