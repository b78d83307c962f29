// Package events holds the notifications emitted by the solve session
// controller.
package events

import (
	"time"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/model"
)

// State is the controller's lifecycle state.
type State string

const (
	Idle    State = "idle"
	Solving State = "solving"
	Stopped State = "stopped"
)

// Source tells where an applied snapshot came from.
type Source string

const (
	SourceDataset Source = "dataset"
	SourcePoll    Source = "poll"
	SourceFinal   Source = "final"
	SourceRefresh Source = "refresh"
)

// Event is implemented by every controller notification.
type Event interface {
	isEvent()
}

// StateChanged is emitted on every state transition.
type StateChanged struct {
	From  State
	To    State
	JobID string
	At    time.Time
}

// SnapshotApplied is emitted after a snapshot replaced the held one.
type SnapshotApplied struct {
	JobID     string
	Timetable *model.Timetable
	Source    Source
	At        time.Time
}

// PollDropped is emitted when a poll response arrived for a job that is no
// longer being solved.
type PollDropped struct {
	JobID string
	At    time.Time
}

// Failure reports an error that happened outside a caller's request, such
// as a failed poll.
type Failure struct {
	Op    string
	JobID string
	Err   error
	At    time.Time
}

func (StateChanged) isEvent()    {}
func (SnapshotApplied) isEvent() {}
func (PollDropped) isEvent()     {}
func (Failure) isEvent()         {}

// AnalysisCompleted is emitted after a successful score analysis.
type AnalysisCompleted struct {
	JobID   string
	Summary analysis.Summary
	At      time.Time
}

func (AnalysisCompleted) isEvent() {}
