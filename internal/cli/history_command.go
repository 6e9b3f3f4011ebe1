package cli

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sheetbatch/internal/history"
	"sheetbatch/internal/model"
)

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var limit int
	var batchID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded batches, or the jobs of one batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()
			if strings.TrimSpace(s.cfg.HistoryPath) == "" {
				return errors.New("history is disabled (history.path is empty)")
			}
			st, err := history.Open(s.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if id := strings.TrimSpace(batchID); id != "" {
				jobs, err := st.Jobs(cmd.Context(), id)
				if err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(out, jobs)
				}
				printJobs(out, jobs)
				return nil
			}

			batches, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(out, batches)
			}
			printBatches(out, batches, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent batches")
	cmd.Flags().StringVar(&batchID, "batch", "", "show the jobs of this batch id")
	return cmd
}

func printBatches(w io.Writer, batches []history.Batch, now time.Time) {
	if len(batches) == 0 {
		fprintf(w, "no batches recorded\n")
		return
	}
	for _, b := range batches {
		state := "ok  "
		if !b.Success {
			state = "FAIL"
		}
		when := b.StartedAt
		if t, err := time.Parse(time.RFC3339, b.StartedAt); err == nil {
			when = humanize.RelTime(t, now, "ago", "from now")
		}
		fprintf(w, "%s %s  %-20s %3d ok %3d failed %3d cancelled  %s\n",
			state, b.BatchID, b.Profile, b.Succeeded, b.Failed, b.Cancelled, when)
	}
}

func printJobs(w io.Writer, jobs []model.ExportJob) {
	if len(jobs) == 0 {
		fprintf(w, "no jobs recorded for this batch\n")
		return
	}
	for _, j := range jobs {
		target := j.FinalPath
		if !j.Succeeded() {
			target = j.Message
		}
		fprintf(w, "%-10s %-4s %-32s %s\n", j.Status, j.Format, j.Label(), target)
	}
}
