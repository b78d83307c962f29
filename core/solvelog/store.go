// Package solvelog keeps a history of solve sessions: score samples, state
// transitions, analyses and failures, queryable by job and time range.
package solvelog

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/beamtime/core/events"
)

// Kind classifies a history record.
type Kind string

const (
	KindSample   Kind = "sample"
	KindState    Kind = "state"
	KindAnalysis Kind = "analysis"
	KindFailure  Kind = "failure"
)

// Record is one history entry.
type Record struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Sample fields.
	Source     string `json:"source,omitempty"`
	Score      string `json:"score,omitempty"`
	Pending    bool   `json:"pending,omitempty"`
	Hard       int64  `json:"hard"`
	Medium     int64  `json:"medium"`
	Soft       int64  `json:"soft"`
	Status     string `json:"status,omitempty"`
	Assigned   int    `json:"assigned"`
	Unassigned int    `json:"unassigned"`

	State    string `json:"state,omitempty"`
	Violated int    `json:"violated,omitempty"`
	Matches  int    `json:"matches,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start time.Time
	End   time.Time
	JobID string
	Kind  Kind
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.JobID != "" && r.JobID != q.JobID {
		return false
	}
	return q.Kind == "" || r.Kind == q.Kind
}

// Store persists records and supports querying. Query returns records in
// timestamp order.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func sortByTime(recs []Record) {
	slices.SortStableFunc(recs, func(a, b Record) int { return a.Timestamp.Compare(b.Timestamp) })
}

// FromEvent converts a controller event into a record. It reports false for
// events that are not kept in the history.
func FromEvent(runID string, ev events.Event) (Record, bool) {
	switch e := ev.(type) {
	case events.SnapshotApplied:
		t := e.Timetable
		r := Record{
			RunID:      runID,
			JobID:      e.JobID,
			Kind:       KindSample,
			Timestamp:  e.At,
			Source:     string(e.Source),
			Score:      t.ScoreLabel(),
			Pending:    t.ScorePending(),
			Status:     string(t.SolverStatus),
			Assigned:   len(t.Assigned()),
			Unassigned: len(t.Unassigned()),
		}
		if !r.Pending {
			if c, err := t.ScoreComponents(); err == nil {
				r.Hard, r.Medium, r.Soft = c.Hard, c.Medium, c.Soft
			}
		}
		return r, true
	case events.StateChanged:
		return Record{RunID: runID, JobID: e.JobID, Kind: KindState, Timestamp: e.At, State: string(e.To)}, true
	case events.AnalysisCompleted:
		return Record{
			RunID:     runID,
			JobID:     e.JobID,
			Kind:      KindAnalysis,
			Timestamp: e.At,
			Violated:  e.Summary.Violated,
			Matches:   e.Summary.Matches,
		}, true
	case events.Failure:
		r := Record{RunID: runID, JobID: e.JobID, Kind: KindFailure, Timestamp: e.At, Source: e.Op}
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
		return r, true
	}
	return Record{}, false
}
