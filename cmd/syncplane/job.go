package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	jobScope      string
	jobConfigType string
	jobConfigFile string
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create and inspect jobs on a running server",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a job",
	Args:  cobra.NoArgs,
	RunE:  runJobCreate,
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job and its attempts",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobShow,
}

func init() {
	addClientFlags(jobCmd)

	jobCreateCmd.Flags().StringVar(&jobScope, "scope", "", "Job scope (connection id for sync, refresh and clear)")
	jobCreateCmd.Flags().StringVar(&jobConfigType, "type", "sync", "Config type: sync, clear, refresh, check_connection")
	jobCreateCmd.Flags().StringVar(&jobConfigFile, "config", "", "Path to the JSON job config, or - for stdin")
	_ = jobCreateCmd.MarkFlagRequired("scope")
	_ = jobCreateCmd.MarkFlagRequired("config")

	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobShowCmd)
}

func runJobCreate(cmd *cobra.Command, args []string) error {
	cfg, err := readPayload(cmd, jobConfigFile)
	if err != nil {
		return err
	}

	job, err := newClient().CreateJob(context.Background(), jobScope, jobConfigType, cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, job)
	}
	fmt.Fprintf(out, "Created job %d (%s, scope %s)\n", job.ID, job.ConfigType, job.Scope)
	return nil
}

func runJobShow(cmd *cobra.Command, args []string) error {
	jobID, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	job, err := newClient().GetJob(context.Background(), jobID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, job)
	}

	fmt.Fprintf(out, "Job:      %d\n", job.ID)
	fmt.Fprintf(out, "Type:     %s\n", job.ConfigType)
	fmt.Fprintf(out, "Scope:    %s\n", job.Scope)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(job.Attempts) == 0 {
		fmt.Fprintln(out, "Attempts: none")
		return nil
	}

	fmt.Fprintln(out)
	tw := newTabWriter(out)
	fmt.Fprintln(tw, "ATTEMPT\tSTATUS\tCREATED\tLOG")
	for _, a := range job.Attempts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			a.AttemptNumber,
			a.Status,
			a.CreatedAt.Format("2006-01-02 15:04"),
			a.LogPath,
		)
	}
	return tw.Flush()
}
