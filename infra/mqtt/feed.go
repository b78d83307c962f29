package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/logger"
	"github.com/kilianp07/beamtime/internal/eventbus"
)

// Topic kinds below the configured prefix.
const (
	TopicStatus   = "status"
	TopicState    = "state"
	TopicSnapshot = "snapshot"
	TopicAnalysis = "analysis"
	TopicFailure  = "failure"

	statusOnline  = "online"
	statusOffline = "offline"
)

// StateMessage is published on every controller state change.
type StateMessage struct {
	JobID string    `json:"job_id,omitempty"`
	From  string    `json:"from"`
	To    string    `json:"to"`
	At    time.Time `json:"at"`
}

// SnapshotMessage is the render feed of one applied snapshot: the score and
// the session ids routed to their grid cell by placement key.
type SnapshotMessage struct {
	JobID      string              `json:"job_id,omitempty"`
	Source     string              `json:"source"`
	Name       string              `json:"name"`
	Score      string              `json:"score"`
	Status     string              `json:"status"`
	Placements map[string][]string `json:"placements"`
	Unassigned []string            `json:"unassigned"`
	At         time.Time           `json:"at"`
}

// AnalysisMessage summarizes a completed analysis.
type AnalysisMessage struct {
	JobID   string           `json:"job_id,omitempty"`
	Summary analysis.Summary `json:"summary"`
	At      time.Time        `json:"at"`
}

// FailureMessage reports a background failure such as a failed poll.
type FailureMessage struct {
	JobID string    `json:"job_id,omitempty"`
	Op    string    `json:"op"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// Message maps a controller event to its topic kind and payload. It reports
// false for events that are not published.
func Message(ev events.Event) (string, any, bool) {
	switch e := ev.(type) {
	case events.StateChanged:
		return TopicState, StateMessage{JobID: e.JobID, From: string(e.From), To: string(e.To), At: e.At}, true
	case events.SnapshotApplied:
		t := e.Timetable
		msg := SnapshotMessage{
			JobID:      e.JobID,
			Source:     string(e.Source),
			Name:       t.Name,
			Score:      t.ScoreLabel(),
			Status:     string(t.SolverStatus),
			Placements: map[string][]string{},
			Unassigned: []string{},
			At:         e.At,
		}
		for key, sessions := range t.Placements() {
			for _, s := range sessions {
				msg.Placements[key] = append(msg.Placements[key], s.ID)
			}
		}
		for _, s := range t.Unassigned() {
			msg.Unassigned = append(msg.Unassigned, s.ID)
		}
		return TopicSnapshot, msg, true
	case events.AnalysisCompleted:
		return TopicAnalysis, AnalysisMessage{JobID: e.JobID, Summary: e.Summary, At: e.At}, true
	case events.Failure:
		msg := FailureMessage{JobID: e.JobID, Op: e.Op, At: e.At}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
		return TopicFailure, msg, true
	}
	return "", nil, false
}

// publisher is the part of Publisher the feed needs.
type publisher interface {
	Publish(kind string, v any) error
}

// StartFeed publishes controller events until ctx is canceled or the bus is
// closed. The returned channel is closed once the feed exits.
func StartFeed(ctx context.Context, bus *eventbus.Bus[events.Event], pub publisher, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.SubscribeN(64)
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
				kind, msg, keep := Message(ev)
				if !keep {
					continue
				}
				if err := pub.Publish(kind, msg); err != nil {
					log.Warnf("publish %s: %v", kind, err)
				}
			}
		}
	}()
	return done
}
