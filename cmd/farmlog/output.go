package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

// emit prints v as JSON when --json is set and calls human otherwise.
func emit(v any, human func(io.Writer) error) error {
	if globalJSON {
		return printJSON(os.Stdout, v)
	}
	return human(os.Stdout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func formatRecords(w io.Writer, recs []entities.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "No entries found.")
		return err
	}
	for _, r := range recs {
		if _, err := fmt.Fprintf(w, "%s %s  %s\n", r.Date, orDash(r.Time), oneLine(r.Content)); err != nil {
			return err
		}
	}
	return nil
}

func formatHits(w io.Writer, hits []entities.ScoredEntry) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "No matches.")
		return err
	}
	for i, h := range hits {
		if _, err := fmt.Fprintf(w, "%d. [%.3f] %s %s  %s\n", i+1, h.Score, h.Date, orDash(h.Time), oneLine(h.Content)); err != nil {
			return err
		}
	}
	return nil
}

func formatAudit(w io.Writer, log []entities.AuditEntry) error {
	if len(log) == 0 {
		_, err := fmt.Fprintln(w, "No audit entries.")
		return err
	}
	for _, a := range log {
		line := fmt.Sprintf("%s  %-14s %s", a.CreatedAt.Format("2006-01-02 15:04:05"), a.Action, orDash(a.EntityKey))
		if len(a.Details) > 0 {
			details, err := json.Marshal(a.Details)
			if err != nil {
				return err
			}
			line += "  " + string(details)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatRows(w io.Writer, rows []map[string]any) error {
	for _, row := range rows {
		if err := printJSON(w, row); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return err
}

// printStepErrors prints a mutation's per-step failures.
func printStepErrors(w io.Writer, errs []string) {
	for _, e := range errs {
		fmt.Fprintf(w, "  ! %s\n", e)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
