package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or set an entity's profile",
	}

	cmd.AddCommand(newProfileShowCmd(), newProfileSetCmd())

	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entity>",
		Short: "Show an entity's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				result, err := d.Diary.Profile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error { return formatProfile(w, result.Entity, result.Profile) })
			})
		},
	}
}

func newProfileSetCmd() *cobra.Command {
	var p entities.Profile

	cmd := &cobra.Command{
		Use:   "set <entity>",
		Short: "Update an entity's profile",
		Long:  "Sets the given profile fields. Fields not passed keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				current, err := d.Diary.Profile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				merged := mergeProfile(current.Profile, p)
				result, err := d.Diary.SaveProfile(cmd.Context(), current.Entity, merged)
				if err != nil {
					return err
				}
				return emit(result, func(w io.Writer) error { return formatProfile(w, result.Entity, result.Profile) })
			})
		},
	}

	cmd.Flags().StringVar(&p.ID, "id", "", "User id")
	cmd.Flags().StringVar(&p.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&p.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&p.FarmID, "farm-id", "", "Farm id")
	cmd.Flags().StringVar(&p.Location, "location", "", "Location code")
	cmd.Flags().StringVar(&p.LocationName, "location-name", "", "Location name")

	return cmd
}

// mergeProfile overlays the non-empty fields of update on base.
func mergeProfile(base, update entities.Profile) entities.Profile {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.ID, update.ID)
	set(&base.Name, update.Name)
	set(&base.Email, update.Email)
	set(&base.FarmID, update.FarmID)
	set(&base.Location, update.Location)
	set(&base.LocationName, update.LocationName)
	return base
}

func formatProfile(w io.Writer, entity string, p entities.Profile) error {
	if p.IsEmpty() {
		_, err := fmt.Fprintf(w, "%s has no profile.\n", entity)
		return err
	}
	rows := [][2]string{
		{"id", p.ID}, {"name", p.Name}, {"email", p.Email},
		{"farm_id", p.FarmID}, {"location", p.Location}, {"location_name", p.LocationName},
	}
	if _, err := fmt.Fprintln(w, entity); err != nil {
		return err
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %-14s %s\n", r[0]+":", r[1]); err != nil {
			return err
		}
	}
	return nil
}
