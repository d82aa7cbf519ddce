package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskmind/internal/logger"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <requirement...>",
	Short: "Run the planner on a requirement and print the transcript",
	Long: `Run the LLM-directed planning loop for one requirement: the planner
decomposes it into tasks, dispatches each task to an executor, and keeps
re-planning until the queue stays empty. Prints the full run transcript.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runHandler,
}

func runHandler(cmd *cobra.Command, args []string) {
	a, log, err := buildApp(cmd)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = a.Shutdown() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requirement := strings.Join(args, " ")
	log.Info("Starting planner run",
		logger.Field{Key: "requirement", Value: requirement})

	transcript, err := a.Controller().Execute(ctx, requirement)
	if err != nil {
		if transcript != "" {
			fmt.Println(transcript)
		}
		fatal(err)
	}

	fmt.Println(transcript)
}
