package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/app"
	"github.com/kilianp07/beamtime/infra/render"
)

var analyzeOpts struct {
	dataset string
	job     string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rank the constraints behind the score of a job or dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return withService(func(svc *app.Service) error {
			if _, err := loadSnapshot(ctx, svc, analyzeOpts.dataset, analyzeOpts.job); err != nil {
				return err
			}
			rep, err := svc.Controller.RequestAnalysis(ctx)
			if err != nil {
				return err
			}
			return render.Analysis(cmd.OutOrStdout(), &rep)
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.dataset, "dataset", "d", "", "demo dataset id")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.job, "job", "j", "", "job id, takes precedence over --dataset")
	rootCmd.AddCommand(analyzeCmd)
}
