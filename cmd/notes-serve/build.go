package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBuildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the index and exit.",
		Long: `Build replaces whatever is in index_dir with a fresh index of the notes.
The index can then be served with --reuse_index or queried with search.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			idx, err := buildIndex(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer idx.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d notes into %s (build %s)\n", idx.DocCount(), cfg.Index.Dir, idx.BuildID())
			return nil
		},
	}
}
