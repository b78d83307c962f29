package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/infra/logger"
	"github.com/kilianp07/beamtime/infra/metrics"
	"github.com/kilianp07/beamtime/internal/mockserver"
)

var mockOpts struct {
	addr        string
	metricsAddr string
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a fake solver backend for local testing",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		ctx, stop := signalContext()
		defer stop()
		if mockOpts.metricsAddr != "" {
			go func() {
				if err := metrics.StartPromServer(ctx, mockOpts.metricsAddr); err != nil {
					logger.New("mock").Errorf("prom server: %v", err)
				}
			}()
		}
		return mockserver.New(mockOpts.addr).Start(ctx)
	},
}

func init() {
	mockCmd.Flags().StringVar(&mockOpts.addr, "addr", ":8080", "listen address")
	mockCmd.Flags().StringVar(&mockOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(mockCmd)
}
