package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler fires a trigger on a standard five-field cron schedule or a
// descriptor such as "@every 10m".
type Scheduler struct {
	spec   string
	sched  cron.Schedule
	logger *slog.Logger
}

// NewScheduler parses spec.
func NewScheduler(spec string, logger *slog.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{spec: spec, sched: sched, logger: logger}, nil
}

// Run blocks until ctx is done. Runs that would overlap a running trigger
// are skipped.
func (s *Scheduler) Run(ctx context.Context, trigger Trigger) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.sched, cron.FuncJob(func() { trigger(ctx) }))

	s.logger.Info("ingest schedule started", "schedule", s.spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
