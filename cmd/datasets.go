package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/app"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the demo datasets offered by the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return withService(func(svc *app.Service) error {
			ids, err := svc.Controller.LoadDemoData(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
