package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/app"
	"github.com/kilianp07/beamtime/infra/render"
	"github.com/kilianp07/beamtime/pkg/export"
)

var showOpts struct {
	dataset string
	job     string
	format  string
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a demo dataset or the current solution of a job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return withService(func(svc *app.Service) error {
			t, err := loadSnapshot(ctx, svc, showOpts.dataset, showOpts.job)
			if err != nil {
				return err
			}
			if showOpts.format != "" {
				return export.Write(cmd.OutOrStdout(), showOpts.format, t)
			}
			return render.Schedule(cmd.OutOrStdout(), t)
		})
	},
}

func init() {
	showCmd.Flags().StringVarP(&showOpts.dataset, "dataset", "d", "", "demo dataset id")
	showCmd.Flags().StringVarP(&showOpts.job, "job", "j", "", "job id, takes precedence over --dataset")
	showCmd.Flags().StringVarP(&showOpts.format, "export", "e", "", "export format instead of the grid (json, yaml, csv)")
	rootCmd.AddCommand(showCmd)
}
