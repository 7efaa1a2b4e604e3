package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <entity> <text>",
		Short: "Find an entity's entries by meaning",
		Long:  "Ranks the entity's entries by embedding similarity to the text, most similar first.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.Query.Search(cmd.Context(), args[0], args[1], limit)
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error {
					if _, err := fmt.Fprintf(w, "%s: %q\n", result.Entity, result.Query); err != nil {
						return err
					}
					return formatHits(w, result.Hits)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultSearchLimit, "Maximum number of results")

	return cmd
}
