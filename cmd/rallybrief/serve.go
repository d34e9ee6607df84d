package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/rallybrief/internal/config"
	"github.com/IshaanNene/rallybrief/internal/pipeline"
	"github.com/IshaanNene/rallybrief/internal/schedule"
)

var (
	servePort     int
	serveSchedule string
	serveTimeout  time.Duration
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the daily schedule",
		Long: `Serve the HTTP API. When a schedule is configured (server.schedule or
--schedule, a 5-field cron spec in server.timezone), the full auto run is
started on every tick.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "API port (default from config)")
	cmd.Flags().StringVar(&serveSchedule, "schedule", "", `cron spec for the auto run, e.g. "30 7 * * *"`)
	cmd.Flags().DurationVar(&serveTimeout, "run-timeout", 30*time.Minute, "upper bound for one scheduled run")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveSchedule != "" {
		cfg.Server.Schedule = serveSchedule
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	var sched *schedule.Scheduler
	if cfg.Server.Schedule != "" {
		sched = schedule.New(a.loc, serveTimeout, logger)
		err := sched.Add("auto", cfg.Server.Schedule, func(ctx context.Context) error {
			_, err := a.briefing.Run(ctx, pipeline.RunOptions{})
			return err
		})
		if err != nil {
			return fmt.Errorf("schedule auto run: %w", err)
		}
		sched.Start()
	}

	server := a.apiServer()
	if err := server.Start(); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	fmt.Printf("rallybrief %s listening on :%d\n", config.Version, cfg.Server.Port)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if sched != nil {
		errs = append(errs, sched.Stop(shutdownCtx))
	}
	errs = append(errs, server.Shutdown(shutdownCtx))
	return errors.Join(errs...)
}
