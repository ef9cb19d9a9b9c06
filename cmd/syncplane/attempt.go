package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	failureSummaryFile string
	syncOutputFile     string
)

var attemptCmd = &cobra.Command{
	Use:   "attempt",
	Short: "Drive job attempts on a running server",
}

var attemptCreateCmd = &cobra.Command{
	Use:   "create <job-id>",
	Short: "Create the next attempt of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttemptCreate,
}

var attemptShowCmd = &cobra.Command{
	Use:   "show <job-id> <attempt-number>",
	Short: "Show an attempt",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttemptShow,
}

var attemptStatsCmd = &cobra.Command{
	Use:   "stats <job-id> <attempt-number>",
	Short: "Show the combined stats of an attempt",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttemptStats,
}

var attemptFailCmd = &cobra.Command{
	Use:   "fail <job-id> <attempt-number>",
	Short: "Mark an attempt failed",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttemptFail,
}

var attemptSucceedCmd = &cobra.Command{
	Use:   "succeed <job-id> <attempt-number>",
	Short: "Mark an attempt succeeded",
	Args:  cobra.ExactArgs(2),
	RunE:  runAttemptSucceed,
}

func init() {
	addClientFlags(attemptCmd)

	attemptFailCmd.Flags().StringVar(&failureSummaryFile, "failure-summary", "", "Path to the JSON failure summary, or - for stdin")
	attemptFailCmd.Flags().StringVar(&syncOutputFile, "output", "", "Path to the JSON sync output")
	attemptSucceedCmd.Flags().StringVar(&syncOutputFile, "output", "", "Path to the JSON sync output, or - for stdin")

	attemptCmd.AddCommand(attemptCreateCmd)
	attemptCmd.AddCommand(attemptShowCmd)
	attemptCmd.AddCommand(attemptStatsCmd)
	attemptCmd.AddCommand(attemptFailCmd)
	attemptCmd.AddCommand(attemptSucceedCmd)
}

func parseAttemptArgs(args []string) (int64, int, error) {
	jobID, err := parseJobID(args[0])
	if err != nil {
		return 0, 0, err
	}
	n, err := parseAttemptNumber(args[1])
	if err != nil {
		return 0, 0, err
	}
	return jobID, n, nil
}

func runAttemptCreate(cmd *cobra.Command, args []string) error {
	jobID, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	n, err := newClient().CreateAttempt(context.Background(), jobID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{"job_id": jobID, "attempt_number": n})
	}
	fmt.Fprintf(out, "Created attempt %d of job %d\n", n, jobID)
	return nil
}

func runAttemptShow(cmd *cobra.Command, args []string) error {
	jobID, n, err := parseAttemptArgs(args)
	if err != nil {
		return err
	}

	a, err := newClient().GetAttempt(context.Background(), jobID, n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, a)
	}
	fmt.Fprintf(out, "Job:      %d\n", a.JobID)
	fmt.Fprintf(out, "Attempt:  %d\n", a.AttemptNumber)
	fmt.Fprintf(out, "Status:   %s\n", a.Status)
	fmt.Fprintf(out, "Log:      %s\n", a.LogPath)
	fmt.Fprintf(out, "Created:  %s\n", a.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if a.EndedAt != nil {
		fmt.Fprintf(out, "Ended:    %s\n", a.EndedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func runAttemptStats(cmd *cobra.Command, args []string) error {
	jobID, n, err := parseAttemptArgs(args)
	if err != nil {
		return err
	}

	s, err := newClient().GetAttemptStats(context.Background(), jobID, n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, s)
	}
	tw := newTabWriter(out)
	fmt.Fprintln(tw, "\tRECORDS\tBYTES")
	fmt.Fprintf(tw, "emitted\t%d\t%d\n", s.RecordsEmitted, s.BytesEmitted)
	fmt.Fprintf(tw, "committed\t%d\t%d\n", s.RecordsCommitted, s.BytesCommitted)
	fmt.Fprintf(tw, "estimated\t%d\t%d\n", s.EstimatedRecords, s.EstimatedBytes)
	return tw.Flush()
}

func runAttemptFail(cmd *cobra.Command, args []string) error {
	jobID, n, err := parseAttemptArgs(args)
	if err != nil {
		return err
	}
	summary, err := readPayload(cmd, failureSummaryFile)
	if err != nil {
		return err
	}
	output, err := readPayload(cmd, syncOutputFile)
	if err != nil {
		return err
	}

	if err := newClient().FailAttempt(context.Background(), jobID, n, summary, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attempt %d of job %d marked failed\n", n, jobID)
	return nil
}

func runAttemptSucceed(cmd *cobra.Command, args []string) error {
	jobID, n, err := parseAttemptArgs(args)
	if err != nil {
		return err
	}
	output, err := readPayload(cmd, syncOutputFile)
	if err != nil {
		return err
	}

	if err := newClient().SucceedAttempt(context.Background(), jobID, n, output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attempt %d of job %d marked succeeded\n", n, jobID)
	return nil
}
