package scenarios

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/core/session"
	"github.com/kilianp07/beamtime/infra/solverapi"
	"github.com/kilianp07/beamtime/internal/mockserver"
)

const (
	datasetID       = "SCENARIO"
	scenarioTimeout = 10 * time.Second
)

// outcome is what a run observed on the controller bus.
type outcome struct {
	polls    int
	failures int
	stopped  bool
}

func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	backend := mockserver.NewWithRegistry("", prometheus.NewRegistry(),
		mockserver.WithDatasets(map[string]*model.Timetable{
			datasetID: mockserver.GenerateDataset(sc.Name, sc.Dataset.ToSpec()),
		}))
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	client, err := solverapi.NewClient(solverapi.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctl := session.New(client, session.Config{Interval: sc.Interval, StopWhenNotSolving: sc.StopWhenNotSolving})
	defer ctl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), scenarioTimeout)
	defer cancel()
	if _, err := ctl.LoadDataset(ctx, datasetID); err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	sub := ctl.Events()
	if _, err := ctl.RequestSolve(ctx); err != nil {
		t.Fatalf("solve: %v", err)
	}

	out := observe(ctx, t, sc, ctl, backend, sub)
	check(ctx, t, sc, ctl, out)
}

func observe(ctx context.Context, t *testing.T, sc *Scenario, ctl *session.Controller, backend *mockserver.Server, sub <-chan events.Event) outcome {
	var out outcome
	injected := make([]bool, len(sc.Failures))
	for {
		select {
		case <-ctx.Done():
			t.Fatalf("scenario %s timed out in state %s", sc.Name, ctl.State())
			return out
		case ev := <-sub:
			switch e := ev.(type) {
			case events.SnapshotApplied:
				if e.Source != events.SourcePoll {
					continue
				}
				out.polls++
				for i, f := range sc.Failures {
					if !injected[i] && out.polls >= f.AfterPolls {
						backend.FailWith(f.Op, f.Status)
						injected[i] = true
					}
				}
				if sc.StopAfterPolls > 0 && out.polls == sc.StopAfterPolls {
					if err := ctl.RequestStop(ctx); err != nil {
						t.Errorf("scenario %s stop: %v", sc.Name, err)
					}
				}
			case events.StateChanged:
				if e.To == events.Stopped {
					out.stopped = true
				}
			case events.Failure:
				out.failures++
			}
		default:
			if ctl.State() != events.Solving && drained(sub, &out) {
				return out
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// drained consumes buffered events after the controller left solving and
// reports true once nothing is pending.
func drained(sub <-chan events.Event, out *outcome) bool {
	time.Sleep(20 * time.Millisecond)
	for {
		select {
		case ev := <-sub:
			switch e := ev.(type) {
			case events.StateChanged:
				if e.To == events.Stopped {
					out.stopped = true
				}
			case events.Failure:
				out.failures++
			}
		default:
			return true
		}
	}
}

func check(ctx context.Context, t *testing.T, sc *Scenario, ctl *session.Controller, out outcome) {
	want := sc.Expected
	if want.FinalState != "" && ctl.State() != want.FinalState {
		t.Errorf("scenario %s expected state %s, got %s", sc.Name, want.FinalState, ctl.State())
	}
	if out.polls < want.MinPolls {
		t.Errorf("scenario %s expected at least %d polls, got %d", sc.Name, want.MinPolls, out.polls)
	}
	if out.failures != want.Failures {
		t.Errorf("scenario %s expected %d failures, got %d", sc.Name, want.Failures, out.failures)
	}
	if out.stopped != want.Stopped {
		t.Errorf("scenario %s expected stopped=%v", sc.Name, want.Stopped)
	}
	if want.Unassigned != nil {
		if got := len(ctl.Snapshot().Unassigned()); got != *want.Unassigned {
			t.Errorf("scenario %s expected %d unassigned, got %d", sc.Name, *want.Unassigned, got)
		}
	}
	if want.Analysis {
		rep, err := ctl.RequestAnalysis(ctx)
		if err != nil {
			t.Errorf("scenario %s analysis: %v", sc.Name, err)
		} else if rep.Unavailable != nil || len(rep.Rows) == 0 {
			t.Errorf("scenario %s expected an analysis, got %+v", sc.Name, rep)
		}
	}
}
