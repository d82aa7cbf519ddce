package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/taskmind/internal/app"
	"github.com/aatumaykin/taskmind/internal/store"
)

// jobCmd groups the thin invocation surface over the job lifecycle engine.
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage durable jobs",
	Long:  `Create, inspect, run and cancel durable jobs tracked by the lifecycle engine.`,
}

var jobCreateDescription string

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new pending job",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		job, err := a.Engine().CreateJob(cmd.Context(), jobCreateDescription)
		if err != nil {
			fatal(err)
		}
		printJSON(job)
	},
}

var jobAddTaskCmd = &cobra.Command{
	Use:   "add-task <job-id> <content...>",
	Short: "Append a pending task to a job",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		taskID, err := a.Engine().AddTask(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			fatal(err)
		}
		fmt.Printf("task %d added to %s\n", taskID, args[0])
	},
}

var jobRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job's tasks and wait for the terminal status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		jobID := args[0]
		started, err := a.Runner().StartJob(cmd.Context(), jobID)
		if err != nil {
			fatal(err)
		}
		if !started {
			fatal(fmt.Errorf("job %s is unknown or already running", jobID))
		}

		job, err := waitTerminal(cmd.Context(), a, jobID)
		if err != nil {
			fatal(err)
		}
		printJSON(job)
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Print the full nested snapshot of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		job, err := a.Engine().GetJob(cmd.Context(), args[0])
		if err != nil {
			fatal(err)
		}
		printJSON(job)
	},
}

var jobListStatus string

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		jobs, err := a.Engine().ListJobs(cmd.Context(), store.Status(jobListStatus))
		if err != nil {
			fatal(err)
		}
		printJSON(jobs)
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		cancelled, err := a.Runner().CancelJob(cmd.Context(), args[0])
		if err != nil {
			fatal(err)
		}
		if !cancelled {
			fmt.Printf("job %s was not running\n", args[0])
			return
		}
		fmt.Printf("job %s cancelled\n", args[0])
	},
}

var jobStatsCmd = &cobra.Command{
	Use:   "stats [job-id]",
	Short: "Print job counts per status, or task progress for one job",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		if len(args) == 1 {
			stats, err := a.Engine().GetJobStats(cmd.Context(), args[0])
			if err != nil {
				fatal(err)
			}
			printJSON(stats)
			return
		}

		stats, err := a.Engine().GetStats(cmd.Context())
		if err != nil {
			fatal(err)
		}
		printJSON(stats)
	},
}

var jobPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove terminal jobs older than the retention window",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, _, err := buildApp(cmd)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = a.Shutdown() }()

		sweeper := a.Sweeper()
		if sweeper == nil {
			fatal(fmt.Errorf("retention is disabled in the configuration"))
		}

		removed, err := sweeper.Sweep(cmd.Context())
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%d jobs removed\n", removed)
	},
}

func waitTerminal(ctx context.Context, a *app.App, jobID string) (*store.Job, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := a.Engine().GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}

func init() {
	jobCreateCmd.Flags().StringVarP(&jobCreateDescription, "description", "d", "", "Job description")
	jobListCmd.Flags().StringVarP(&jobListStatus, "status", "s", "", "Filter by status (pending, running, completed, failed, cancelled)")

	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobAddTaskCmd)
	jobCmd.AddCommand(jobRunCmd)
	jobCmd.AddCommand(jobGetCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobCancelCmd)
	jobCmd.AddCommand(jobStatsCmd)
	jobCmd.AddCommand(jobPruneCmd)
}
