package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/app"
	"github.com/kilianp07/beamtime/config"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/infra/logger"
	"github.com/kilianp07/beamtime/infra/render"
)

var (
	cfgPath string
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:           "beamtime",
	Short:         "Beamtime scheduling solver client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if noColor {
			render.SetColor(false)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withService loads the configuration, applies adjust, builds the service
// and runs fn. The service is closed afterwards whatever fn returns.
func withService(fn func(*app.Service) error, adjust ...func(*config.Config)) (err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, a := range adjust {
		a(cfg)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.New("main").Errorf("service close: %v", cerr)
		}
	}()
	defer svc.Recover()
	return fn(svc)
}

// pickDataset returns id, the configured default dataset or the first one
// the backend offers, in that order.
func pickDataset(ctx context.Context, svc *app.Service, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if svc.Config.Backend.Dataset != "" {
		return svc.Config.Backend.Dataset, nil
	}
	ids, err := svc.Controller.LoadDemoData(ctx)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// loadSnapshot loads a job when jobID is set and a dataset otherwise.
func loadSnapshot(ctx context.Context, svc *app.Service, dataset, jobID string) (*model.Timetable, error) {
	if jobID != "" {
		return svc.Controller.LoadJob(ctx, jobID)
	}
	id, err := pickDataset(ctx, svc, dataset)
	if err != nil {
		return nil, err
	}
	return svc.Controller.LoadDataset(ctx, id)
}
