package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/farmlog/internal/domain/services"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ingest new and changed source files",
		Long:  "Scans the source root for entity folders and stores every new or modified file's entries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				report, err := d.Ingest.Handle(cmd.Context())
				if err != nil {
					return err
				}
				if err := emit(report, func(w io.Writer) error { return formatReport(w, report) }); err != nil {
					return err
				}
				if !report.OK {
					return errors.New(report.Error)
				}
				return nil
			})
		},
	}
}

func formatReport(w io.Writer, r *services.IngestReport) error {
	_, err := fmt.Fprintf(w, "Scanned %d entities, %d files in %s: %d processed, %d skipped, %d empty, %d failed; %d entries stored\n",
		len(r.Entities), len(r.Files), r.Duration.Round(time.Millisecond), r.Processed, r.Skipped, r.Empty, r.Failed, r.EntriesStored)
	if err != nil {
		return err
	}
	printStepErrors(w, r.Errors)
	return nil
}
