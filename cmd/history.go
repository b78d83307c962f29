package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/app"
	"github.com/kilianp07/beamtime/core/progress"
	"github.com/kilianp07/beamtime/core/solvelog"
	"github.com/kilianp07/beamtime/infra/render"
)

var historyOpts struct {
	job   string
	kind  string
	since time.Duration
	chart string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded solve runs and the score trend of a job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return withService(func(svc *app.Service) error {
			q := solvelog.Query{JobID: historyOpts.job, Kind: solvelog.Kind(historyOpts.kind)}
			if historyOpts.since > 0 {
				q.Start = time.Now().Add(-historyOpts.since)
			}
			recs, err := svc.History.Query(ctx, q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printHistory(out, recs)
			return printTrend(out, recs, historyOpts.chart)
		})
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyOpts.job, "job", "j", "", "only records of this job")
	historyCmd.Flags().StringVarP(&historyOpts.kind, "kind", "k", "", "only records of this kind (sample, state, analysis, failure)")
	historyCmd.Flags().DurationVar(&historyOpts.since, "since", 0, "only records newer than this duration")
	historyCmd.Flags().StringVar(&historyOpts.chart, "chart", "", "write an HTML score chart to this file")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(w io.Writer, recs []solvelog.Record) {
	for _, r := range recs {
		var detail string
		switch r.Kind {
		case solvelog.KindSample:
			detail = fmt.Sprintf("%s %s assigned=%d unassigned=%d", r.Score, r.Status, r.Assigned, r.Unassigned)
		case solvelog.KindState:
			detail = r.State
		case solvelog.KindAnalysis:
			detail = fmt.Sprintf("violated=%d matches=%d", r.Violated, r.Matches)
		case solvelog.KindFailure:
			detail = r.Source + ": " + r.Error
		}
		fmt.Fprintf(w, "%s  %-10s %-8s %s\n", r.Timestamp.Format(time.RFC3339), r.JobID, r.Kind, detail)
	}
}

func printTrend(w io.Writer, recs []solvelog.Record, chartPath string) error {
	samples := progress.Samples(recs)
	trend, err := progress.Compute(samples)
	switch {
	case errors.Is(err, progress.ErrNotEnoughSamples):
		fmt.Fprintln(w, "Not enough scored samples for a trend")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "Trend over %s: %s -> %s (best %s), per minute: hard %+.2f medium %+.2f soft %+.2f\n",
			trend.Elapsed.Round(time.Second), trend.First, trend.Last, trend.Best,
			trend.HardRate, trend.MediumRate, trend.SoftRate)
	}
	if chartPath == "" {
		return nil
	}
	f, err := os.Create(chartPath)
	if err != nil {
		return err
	}
	title := "Score history"
	if historyOpts.job != "" {
		title += " of job " + historyOpts.job
	}
	if err := render.WriteScoreChart(f, title, samples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
