package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/fixture"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	jobsmem "github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/schedule"
	"github.com/dvloznov/budget-tracker/internal/store/inmemory"
)

func main() {
	// Initialize logger
	log := logger.New()

	clk := clock.System{}

	// Backing store. With no fixture this starts empty; deployments with a
	// BigQuery dataset swap in the infra repository here.
	st := inmemory.NewStore(clk)
	if path := os.Getenv("BUDGET_FIXTURE"); path != "" {
		if err := fixture.Load(context.Background(), path, st); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to load fixture")
		}
		log.Info().Str("path", path).Msg("Loaded fixture")
	}

	scheduler := schedule.NewScheduler(st, st, clk, logger.WithComponent(log, "schedule"), schedule.Options{})

	// Initialize job store and queue
	jobStore := jobsmem.NewStore()
	jobQueue := jobsmem.NewQueue(100, jobStore)

	log.Info().Msg("Starting scheduler service")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create job handler that runs due passes
	handler := func(ctx context.Context, job jobs.Job) error {
		passJob, ok := job.(*jobs.DuePassJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", passJob.JobID).
			Bool("dry_run", passJob.DryRun).
			Msg("Processing due pass job")

		report, err := scheduler.RunDuePass(ctx, schedule.PassOptions{
			PersonID:       passJob.PersonID,
			DryRun:         passJob.DryRun,
			ForceExecute:   passJob.ForceExecute,
			MaxDaysOverdue: passJob.MaxDaysOverdue,
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", passJob.JobID).
				Msg("Due pass failed")
			return err
		}

		log.Info().
			Str("job_id", passJob.JobID).
			Int("executed", report.Summary.Executed).
			Int("failed", report.Summary.Failed).
			Msg("Due pass completed")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Publish a due pass on a fixed interval until shutdown.
	interval := passInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job := &jobs.DuePassJob{}
				if err := jobQueue.PublishDuePass(ctx, job); err != nil {
					log.Error().Err(err).Msg("Failed to publish due pass job")
				}
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Scheduler service started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down scheduler service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Scheduler service stopped")
}

func passInterval() time.Duration {
	if v := os.Getenv("BUDGET_PASS_INTERVAL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return time.Hour
}
