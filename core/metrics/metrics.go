package metrics

import (
	"time"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/score"
)

// SolveEvent marks the start or end of a solve job.
type SolveEvent struct {
	JobID   string
	Dataset string
	Started bool
	Time    time.Time
}

// PollEvent is one snapshot received while a job is running. Dropped is set
// for responses that arrived after the job was no longer active.
type PollEvent struct {
	JobID      string
	Score      score.Components
	ScoreText  string
	Status     string
	Unassigned int
	Dropped    bool
	Time       time.Time
}

// AnalysisEvent summarizes one ranked analysis.
type AnalysisEvent struct {
	JobID   string
	Summary analysis.Summary
	Time    time.Time
}

// RequestEvent describes one call to the solver backend.
type RequestEvent struct {
	Op       string
	Status   int
	Duration time.Duration
	Failed   bool
	Time     time.Time
}

// MetricsSink records solve lifecycle and poll samples.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
	RecordPoll(ev PollEvent) error
}

// AnalysisRecorder is implemented by sinks that record analyses.
type AnalysisRecorder interface {
	RecordAnalysis(ev AnalysisEvent) error
}

// RequestRecorder is implemented by sinks that record backend requests.
type RequestRecorder interface {
	RecordRequest(ev RequestEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error       { return nil }
func (NopSink) RecordPoll(PollEvent) error         { return nil }
func (NopSink) RecordAnalysis(AnalysisEvent) error { return nil }
func (NopSink) RecordRequest(RequestEvent) error   { return nil }
