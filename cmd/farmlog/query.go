package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

func newQueryCmd() *cobra.Command {
	var sql bool

	cmd := &cobra.Command{
		Use:   "query <predicate> [args...]",
		Short: "Query the secondary index",
		Long: "Runs a read-only WHERE predicate over the records table, with ? placeholders bound to args.\n" +
			"With --sql the first argument is a full SELECT statement and rows are printed as returned.",
		Example: `  farmlog query "entity_key = ? AND date >= ?" 1_taeyong 2023-09-01
  farmlog query --sql "SELECT date, COUNT(*) AS n FROM records GROUP BY date"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				params = append(params, a)
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				if sql {
					result, err := d.Query.Rows(cmd.Context(), args[0], params...)
					if err != nil {
						return fmt.Errorf("running statement: %w", err)
					}
					return emit(result, func(w io.Writer) error { return formatRows(w, result.Rows) })
				}
				result, err := d.Query.Records(cmd.Context(), args[0], params...)
				if err != nil {
					return fmt.Errorf("querying records: %w", err)
				}
				return emit(result, func(w io.Writer) error { return formatRecordsWithEntity(w, result.Records) })
			})
		},
	}

	cmd.Flags().BoolVar(&sql, "sql", false, "Treat the argument as a full SELECT statement")

	return cmd
}

func newTablesCmd() *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List secondary index tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.Query.Tables(cmd.Context(), dump)
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error {
					for _, t := range result.Tables {
						fmt.Fprintln(w, t)
						if dump {
							if err := formatRows(w, result.Rows[t]); err != nil {
								return err
							}
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "Print every row of every table")

	return cmd
}

func newAuditCmd() *cobra.Command {
	var (
		entity string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.Query.Audit(cmd.Context(), entity, limit)
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error { return formatAudit(w, result.Entries) })
			})
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Only show actions on this entity key")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultAuditLimit, "Maximum number of entries")

	return cmd
}

func formatRecordsWithEntity(w io.Writer, recs []entities.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No entries found.")
		return err
	}
	for _, r := range recs {
		if _, err := fmt.Fprintf(w, "%-16s %s %s  %s\n", r.EntityKey, r.Date, orDash(r.Time), oneLine(r.Content)); err != nil {
			return err
		}
	}
	return nil
}
