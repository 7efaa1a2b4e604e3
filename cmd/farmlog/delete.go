package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <entity> <date>",
		Short: "Delete an entity's entries for a date",
		Long:  "Removes the date's entries from the source files, the secondary index and the stored bundle.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmAction(fmt.Sprintf("Delete all entries of %s on %s?", args[0], args[1])) {
				fmt.Println("Cancelled.")
				return nil
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				res := d.Diary.DeleteEntriesForDate(cmd.Context(), args[0], args[1])
				if err := emit(res, func(w io.Writer) error {
					fmt.Fprintf(w, "Deleted %d records of %s on %s\n", res.DeletedRecords, res.Entity, res.Date)
					for _, f := range res.DeletedFiles {
						fmt.Fprintf(w, "  removed   %s\n", f)
					}
					for _, f := range res.RewrittenFiles {
						fmt.Fprintf(w, "  rewritten %s\n", f)
					}
					fmt.Fprintf(w, "%d entries remain\n", res.Remaining)
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

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func newDeleteEntityCmd() *cobra.Command {
	var (
		force         bool
		removeSources bool
	)

	cmd := &cobra.Command{
		Use:   "delete-entity <entity>",
		Short: "Delete an entity's stored data",
		Long: "Deletes the entity's bundle and index records. With --remove-sources the entity's " +
			"source folder is deleted too; otherwise the files stay and are not re-ingested.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := fmt.Sprintf("Delete all stored data of %s?", args[0])
			if removeSources {
				prompt = fmt.Sprintf("Delete all stored data AND source files of %s?", args[0])
			}
			if !force && !confirmAction(prompt) {
				fmt.Println("Cancelled.")
				return nil
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				res := d.Diary.DeleteEntity(cmd.Context(), args[0], removeSources)
				if err := emit(res, func(w io.Writer) error {
					fmt.Fprintf(w, "Deleted %s (%d records)\n", res.Entity, res.DeletedRecords)
					if res.SourcesRemoved {
						fmt.Fprintln(w, "Source folder removed.")
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

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&removeSources, "remove-sources", false, "Also delete the entity's source folder")

	return cmd
}

// confirmAction prompts the user for confirmation. Returns true if user confirms.
func confirmAction(prompt string) bool {
	return confirm(os.Stdin, os.Stdout, prompt)
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	response, _ := reader.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
