package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/beamtime/core/events"
	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	"github.com/kilianp07/beamtime/infra/logger"
	"github.com/kilianp07/beamtime/internal/eventbus"
)

// StartEventCollector subscribes to the controller bus and records metrics
// for its events. It returns a channel closed once the collector exits,
// which happens when ctx is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := Record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

// Record translates one controller event into sink calls.
func Record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.StateChanged:
		switch {
		case e.To == events.Solving:
			return sink.RecordSolve(coremetrics.SolveEvent{JobID: e.JobID, Started: true, Time: stamp(e.At)})
		case e.From == events.Solving:
			return sink.RecordSolve(coremetrics.SolveEvent{JobID: e.JobID, Time: stamp(e.At)})
		}
	case events.SnapshotApplied:
		if e.Source != events.SourcePoll && e.Source != events.SourceFinal {
			return nil
		}
		t := e.Timetable
		pe := coremetrics.PollEvent{
			JobID:      e.JobID,
			ScoreText:  t.ScoreLabel(),
			Status:     string(t.SolverStatus),
			Unassigned: len(t.Unassigned()),
			Time:       stamp(e.At),
		}
		if !t.ScorePending() {
			// An unparseable score is still a sample; its levels stay zero.
			pe.Score, _ = t.ScoreComponents()
		}
		return sink.RecordPoll(pe)
	case events.PollDropped:
		return sink.RecordPoll(coremetrics.PollEvent{JobID: e.JobID, Dropped: true, Time: stamp(e.At)})
	case events.AnalysisCompleted:
		if r, ok := sink.(coremetrics.AnalysisRecorder); ok {
			return r.RecordAnalysis(coremetrics.AnalysisEvent{JobID: e.JobID, Summary: e.Summary, Time: stamp(e.At)})
		}
	}
	return nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
