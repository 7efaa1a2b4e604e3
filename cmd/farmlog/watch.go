package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/infrastructure/watcher"
)

type watchFlags struct {
	schedule    string
	metricsAddr string
	noInitial   bool
}

func newWatchCmd() *cobra.Command {
	var flags watchFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest continuously as source files change",
		Long:  "Watches the source root and re-runs ingestion after file changes settle, optionally on a cron schedule too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				return runWatch(cmd.Context(), d, flags)
			})
		},
	}

	cmd.Flags().StringVar(&flags.schedule, "schedule", "", "Cron spec for periodic ingestion (overrides config)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVar(&flags.noInitial, "no-initial", false, "Skip the ingestion pass at startup")

	return cmd
}

func runWatch(ctx context.Context, d *Deps, flags watchFlags) error {
	cfg := d.Config
	schedule := cfg.Ingest.Schedule
	if flags.schedule != "" {
		schedule = flags.schedule
	}
	metricsAddr := cfg.Metrics.Addr
	if flags.metricsAddr != "" {
		metricsAddr = flags.metricsAddr
	}

	trigger := func(ctx context.Context) {
		report, err := d.Ingest.Handle(ctx)
		switch {
		case errors.Is(err, entities.ErrIngestBusy):
			d.Logger.Info("ingestion skipped", "reason", err)
		case err != nil:
			d.Logger.Error("ingestion failed", "err", err)
		case !report.OK:
			d.Logger.Warn("ingestion finished with errors", "failed", report.Failed, "err", report.Error)
		}
	}

	if !flags.noInitial {
		trigger(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)

	w := watcher.New(cfg.Ingest.Root, cfg.Ingest.Extensions, cfg.Ingest.Debounce, d.Logger)
	g.Go(func() error {
		return w.Run(ctx, trigger)
	})

	if schedule != "" {
		sched, err := watcher.NewScheduler(schedule, d.Logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sched.Run(ctx, trigger)
		})
	}

	if metricsAddr != "" {
		g.Go(func() error {
			return d.Metrics.Serve(ctx, metricsAddr, d.Logger)
		})
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", cfg.Ingest.Root)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
