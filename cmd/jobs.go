package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cleardeed/diligence-cli/internal/model"
	"github.com/cleardeed/diligence-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect analysis job history",
	Long:  "Commands for listing jobs, polling status, and fetching results.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		property, _ := cmd.Flags().GetString("property")
		user, _ := cmd.Flags().GetString("user")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			PropertyID: property,
			UserID:     user,
			Status:     model.JobStatus(status),
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// -- jobs status --

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng, _ := initEngine(st)
		view, err := eng.GetStatus(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

// -- jobs results --

var jobsResultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Show the findings and score of a completed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := validateAndInit(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng, _ := initEngine(st)
		result, err := eng.GetResults(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs results")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func formatJobsList(w io.Writer, jobs []model.AnalysisJob) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB ID\tPROPERTY\tSTATUS\tPROGRESS\tSCORE\tLEVEL\tCREATED")
	for _, j := range jobs {
		score := "-"
		level := "-"
		if j.Status == model.JobStatusCompleted {
			score = fmt.Sprintf("%d", j.RiskScore)
			level = j.RiskLevel
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
			j.ID, j.PropertyID, j.Status, j.Progress, score, level,
			j.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}

func init() {
	jobsListCmd.Flags().String("property", "", "filter by property ID")
	jobsListCmd.Flags().String("user", "", "filter by user ID")
	jobsListCmd.Flags().String("status", "", "filter by status (pending|processing|completed|failed)")
	jobsListCmd.Flags().Int("limit", 20, "maximum number of jobs to show")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsResultsCmd)
	rootCmd.AddCommand(jobsCmd)
}
