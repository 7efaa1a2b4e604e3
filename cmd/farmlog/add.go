package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type addFlags struct {
	date   string
	time   string
	target string
}

func newAddCmd() *cobra.Command {
	var flags addFlags

	cmd := &cobra.Command{
		Use:   "add <entity> <content>",
		Short: "Add a diary entry",
		Long:  "Appends an entry to the entity's source file for the date and stores it immediately.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				res := d.Diary.AddEntry(cmd.Context(), args[0], flags.date, flags.time, args[1], flags.target)
				if err := emit(res, func(w io.Writer) error {
					if res.Written {
						fmt.Fprintf(w, "Wrote %s (%s)\n", res.FilePath, res.WriteTier)
						fmt.Fprintf(w, "Entry %s on %s\n", res.Entry.ID, res.Entry.Date)
					}
					printStepErrors(w, res.Errors)
					return nil
				}); err != nil {
					return err
				}
				if !res.OK {
					return errors.New(res.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.date, "date", "d", "", "Entry date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&flags.time, "time", "t", "", "Entry time, e.g. 08:30")
	cmd.Flags().StringVarP(&flags.target, "file", "f", "", "Source file name inside the entity folder")

	return cmd
}
