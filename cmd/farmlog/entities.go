package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List stored entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.Diary.ListEntities(cmd.Context())
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error {
					if len(result.Entities) == 0 {
						_, err := fmt.Fprintln(w, "No entities found.")
						return err
					}
					for _, key := range result.Entities {
						if _, err := fmt.Fprintln(w, key); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newEntriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entries <entity> <date>",
		Short: "Show an entity's entries for a date",
		Long:  "Shows the entries recorded on a date. The entity may be given as its full key, its id or its name.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.Diary.EntriesForDate(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error {
					return formatRecords(w, result.Entries)
				})
			})
		},
	}
}
