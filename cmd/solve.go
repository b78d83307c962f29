package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/beamtime/app"
	"github.com/kilianp07/beamtime/config"
	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/session"
	"github.com/kilianp07/beamtime/infra/render"
)

var solveOpts struct {
	dataset string
	analyze bool
	grid    bool
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Submit a dataset and follow the solver until it finishes or Ctrl-C",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext()
		defer stop()
		return withService(func(svc *app.Service) error {
			return solve(ctx, svc, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}, followToEnd)
	},
}

// followToEnd makes the controller go idle once the backend reports the job
// as no longer solving, which is what ends the command.
func followToEnd(cfg *config.Config) { cfg.Poll.StopWhenNotSolving = true }

func init() {
	solveCmd.Flags().StringVarP(&solveOpts.dataset, "dataset", "d", "", "demo dataset id")
	solveCmd.Flags().BoolVarP(&solveOpts.analyze, "analyze", "a", false, "print the constraint analysis of the final solution")
	solveCmd.Flags().BoolVar(&solveOpts.grid, "grid", false, "print the full grid on every improvement")
	rootCmd.AddCommand(solveCmd)
}

func solve(ctx context.Context, svc *app.Service, out, errOut io.Writer) error {
	ctl := svc.Controller
	if _, err := loadSnapshot(ctx, svc, solveOpts.dataset, ""); err != nil {
		return err
	}
	sub := ctl.Events()
	defer ctl.Bus().Unsubscribe(sub)

	jobID, err := ctl.RequestSolve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Solving job %s, press Ctrl-C to stop\n", jobID)
	if err := follow(ctx, ctl, sub, out, errOut); err != nil {
		return err
	}

	// Ctrl-C leaves the job running on the backend until stopped here.
	if ctx.Err() != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*svc.Config.Backend.Timeout)
		defer cancel()
		if err := ctl.RequestStop(stopCtx); err != nil && !errors.Is(err, session.ErrNotSolving) {
			return fmt.Errorf("stop job %s: %w", jobID, err)
		}
	}
	if err := render.Schedule(out, ctl.Snapshot()); err != nil {
		return err
	}
	if !solveOpts.analyze {
		return nil
	}
	actx, cancel := context.WithTimeout(context.Background(), 2*svc.Config.Backend.Timeout)
	defer cancel()
	rep, err := ctl.RequestAnalysis(actx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return render.Analysis(out, &rep)
}

// follow prints progress until the controller returns to idle, the bus
// closes or ctx is canceled. A poll failure is returned as an error.
func follow(ctx context.Context, ctl *session.Controller, sub <-chan events.Event, out, errOut io.Writer) error {
	idle, polled := false, false
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case events.SnapshotApplied:
				if e.Source != events.SourcePoll {
					continue
				}
				polled = true
				if solveOpts.grid {
					if err := render.Schedule(out, e.Timetable); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s (%s, %d unassigned)\n", render.ScoreLine(e.Timetable), e.Timetable.SolverStatus, len(e.Timetable.Unassigned()))
			case events.StateChanged:
				if e.To != events.Idle {
					continue
				}
				// Polling also ends on failure; the Failure event follows the
				// transition while the last snapshot still reports solving.
				if snap := ctl.Snapshot(); polled && (snap == nil || !snap.SolverStatus.Active()) {
					return nil
				}
				idle = true
			case events.Failure:
				fmt.Fprintf(errOut, "warning: %s failed: %v\n", e.Op, e.Err)
				if e.Op == "poll" && idle {
					return e.Err
				}
			}
		}
	}
}
