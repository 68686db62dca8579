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

	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect report run history",
	Long:  "Commands for listing and viewing past daily and weekly report runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List report runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Kind:   model.JobKind(kind),
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run, including its dead letters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		letters, err := st.ListDeadLetters(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show dead letters")
		}

		out := struct {
			*model.Run
			DeadLetters []model.DeadLetter `json:"dead_letters,omitempty"`
		}{Run: run, DeadLetters: letters}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tFETCHED\tALERTED\tEMAILED\tFAILED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t-------\t-------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		fetched, alerted, emailed, failed := "-", "-", "-", "-"
		if r.Result != nil {
			fetched = fmt.Sprintf("%d", r.Result.DealsFetched)
			alerted = fmt.Sprintf("%d", r.Result.DealsAlerted)
			emailed = fmt.Sprintf("%d", r.Result.OwnersEmailed)
			failed = fmt.Sprintf("%d", r.Result.EmailsFailed)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.Status, fetched, alerted, emailed, failed,
			r.CreatedAt.Format("2006-01-02 15:04"), dur)
	}
	_ = w.Flush()
}

func init() {
	runsListCmd.Flags().String("kind", "", "filter by job kind (daily or weekly)")
	runsListCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 20, "maximum rows")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
