package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rosca_engine/internal/domain/runreport"
	"rosca_engine/internal/infra/httpapi"
	"rosca_engine/internal/infra/logger"
	"rosca_engine/internal/infra/scheduler"
	"rosca_engine/internal/infra/telegram"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the long-running serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve job endpoints, run the cron schedule and the ops bot",
		Long: `Start the HTTP job endpoints, the cron scheduler for both engines and,
when TELEGRAM_TOKEN is set, the ops bot.

Example:
  engine serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// engineJobs binds both engines to their cron specs.
func engineJobs(comps *components) []scheduler.Job {
	return []scheduler.Job{
		{
			Name: runreport.JobCycleProgression,
			Spec: comps.cfg.CronSpecCycles,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := comps.cycles.Run(ctx, now)
				return err
			},
		},
		{
			Name: runreport.JobOverdueObligations,
			Spec: comps.cfg.CronSpecObligations,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := comps.obligations.Run(ctx, now)
				return err
			},
		},
	}
}

func serve(ctx context.Context) error {
	comps, err := loadComponents()
	if err != nil {
		return err
	}
	defer comps.Close()
	log := logger.Component("main")

	jobScheduler := scheduler.NewJobScheduler(engineJobs(comps), comps.cfg.JobTimeout, comps.cfg.BusinessLocation, logger.Component("scheduler"))
	if err := jobScheduler.Start(); err != nil {
		return err
	}
	defer jobScheduler.Stop()

	server := httpapi.NewServer(comps.cycles, comps.obligations, comps.cfg.JobTimeout, logger.Component("httpapi"))
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(comps.cfg.HTTPAddr)
	}()

	if comps.bot != nil {
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(comps.bot, comps.cfg.AdminTelegramID, botLogger)
		telegram.RegisterOpsHandlers(ctx, comps.bot, comps.ops, botLogger)
		go comps.bot.Start()
		defer comps.bot.Stop()
		log.Info("Telegram ops bot started.")
	}

	log.Info("Application setup complete. Scheduler and HTTP server are running.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server stopped: %w", err)
		}
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	log.Info("Application shut down gracefully.")
	return nil
}
