package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/biztime/cmd/biztime/cli"
	"github.com/odyssey-erp/biztime/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger background jobs",
}

var (
	jobsJSON      bool
	scheduledSize int
)

func init() {
	jobsCmd.PersistentFlags().BoolVar(&jobsJSON, "json", false, "print machine readable output")
	jobsScheduledCmd.Flags().IntVar(&scheduledSize, "size", 10, "number of scheduled tasks to list")
	jobsCmd.AddCommand(jobsTriggerCmd, jobsStatsCmd, jobsScheduledCmd)
}

var jobsTriggerCmd = &cobra.Command{
	Use:       "trigger " + jobs.TaskCompanyCacheBump,
	Short:     "Enqueue a job by task type",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{jobs.TaskCompanyCacheBump},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openJobsCLI()
		if err != nil {
			return err
		}
		defer c.Close()

		info, err := c.Trigger(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return err
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show default queue counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openJobsCLI()
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := c.InspectQueue(cmd.Context())
		if err != nil {
			return err
		}
		return cli.WriteStats(cmd.OutOrStdout(), stats, jobsJSON)
	},
}

var jobsScheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "List scheduled tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := openJobsCLI()
		if err != nil {
			return err
		}
		defer c.Close()

		tasks, err := c.ListScheduled(cmd.Context(), scheduledSize)
		if err != nil {
			return err
		}
		return cli.WriteScheduled(cmd.OutOrStdout(), tasks, jobsJSON)
	},
}

func openJobsCLI() (*cli.JobsCLI, error) {
	cfg, _, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	if !cfg.CacheEnabled() {
		return nil, errors.New("jobs: REDIS_ADDR is not set")
	}
	return cli.NewJobsCLI(cfg.RedisAddr)
}
