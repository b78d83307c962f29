// Package solver defines the contract with the remote scheduling backend.
package solver

import (
	"context"
	"errors"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/model"
)

var (
	// ErrNetworkFailure wraps any transport error or non-success response.
	ErrNetworkFailure = errors.New("solver backend request failed")
	// ErrNoDataAvailable is returned when the backend offers no demo dataset.
	ErrNoDataAvailable = errors.New("no demo data available")
)

// Client talks to the solver backend. Implementations must be safe for
// concurrent use.
type Client interface {
	// DemoData lists the identifiers of the demo datasets.
	DemoData(ctx context.Context) ([]string, error)
	// DemoTimetable fetches one demo dataset.
	DemoTimetable(ctx context.Context, id string) (*model.Timetable, error)
	// Solve submits a timetable and returns the job id.
	Solve(ctx context.Context, t *model.Timetable) (string, error)
	// Timetable fetches the current best solution of a job.
	Timetable(ctx context.Context, jobID string) (*model.Timetable, error)
	// StopSolving terminates a job.
	StopSolving(ctx context.Context, jobID string) error
	// Analyze asks the backend for a per-constraint breakdown of t.
	Analyze(ctx context.Context, t *model.Timetable) (*analysis.Result, error)
}
