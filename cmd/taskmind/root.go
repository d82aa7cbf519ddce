package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskmind/internal/app"
	"github.com/aatumaykin/taskmind/internal/config"
	"github.com/aatumaykin/taskmind/internal/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskmind",
	Short: "Taskmind - LLM-directed task planner and durable job engine",
	Long: `Taskmind decomposes open-ended requirements into a dynamically
evolving task queue driven by an LLM planner, and durably tracks work as
jobs, tasks and tool uses with crash-safe status transitions.`,
	Version: Version,
}

var (
	rootConfigPath string
	rootLogLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVarP(&rootLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobCmd)
}

// loadConfig loads and validates the configuration, applying flag overrides.
func loadConfig() (*config.Config, error) {
	configPath := rootConfigPath
	if configPath == "" {
		configPath = "./config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if rootLogLevel != "" {
		cfg.Logging.Level = rootLogLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		return nil, fmt.Errorf("configuration validation failed with %d errors", len(errs))
	}

	return cfg, nil
}

// buildApp loads the configuration, installs the logger and returns an
// initialized application.
func buildApp(cmd *cobra.Command) (*app.App, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)

	a := app.New(cfg, log)
	if err := a.Initialize(cmd.Context()); err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
