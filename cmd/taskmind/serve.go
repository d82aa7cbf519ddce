package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskmind/internal/app"
	"github.com/aatumaykin/taskmind/internal/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run Taskmind as a long-lived service",
	Long: `Run Taskmind with the metrics endpoint and retention sweeper active,
handling graceful shutdown on SIGINT/SIGTERM. Jobs started through the
engine keep being supervised until shutdown.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fatal(err)
	}
	logger.SetDefault(log)

	log.Info("Starting Taskmind",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "workspace", Value: cfg.Workspace.Path},
		logger.Field{Key: "llm_provider", Value: cfg.LLM.Provider})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, log).Run(ctx); err != nil {
		fatal(err)
	}

	log.Info("Taskmind stopped gracefully")
}
