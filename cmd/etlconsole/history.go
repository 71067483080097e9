package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cuemby/etlconsole/pkg/storage"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02 15:04:05"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show local history",
}

var historyJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List ETL jobs launched from this console",
	Args:  cobra.NoArgs,
	RunE:  runJobHistory,
}

var historyQueriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "List questions asked from this console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()

		queries, err := store.ListQueries()
		if err != nil {
			return err
		}
		if len(queries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No queries yet.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Asked", "Question", "SQL", "Result")
		for _, q := range queries {
			result := "ok"
			if q.Error != "" {
				result = q.Error
			}
			table.Append(formatTime(q.AskedAt), q.Question, q.SQL, result)
		}
		return table.Render()
	},
}

func init() {
	historyCmd.AddCommand(historyJobsCmd)
	historyCmd.AddCommand(historyQueriesCmd)
}

func runJobHistory(cmd *cobra.Command, args []string) error {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	return printJobs(cmd.OutOrStdout(), store)
}

func printJobs(out io.Writer, store storage.Store) error {
	jobs, err := store.ListJobs()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No ETL jobs yet.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Job", "Window", "State", "Progress", "Started", "Duration", "Last message")
	for _, j := range jobs {
		window := "default"
		if j.WindowDays != nil {
			window = strconv.Itoa(*j.WindowDays) + "d"
		}
		duration := "-"
		if !j.FinishedAt.IsZero() && !j.StartedAt.IsZero() {
			duration = j.FinishedAt.Sub(j.StartedAt).Round(time.Second).String()
		}
		table.Append(
			j.ID,
			window,
			string(j.State),
			fmt.Sprintf("%d%%", j.Percent),
			formatTime(j.StartedAt),
			duration,
			j.LastMessage,
		)
	}
	return table.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeFormat)
}
