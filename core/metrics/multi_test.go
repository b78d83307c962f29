package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordSolve(SolveEvent) error { r.count++; return r.err }
func (r *recordSink) RecordPoll(PollEvent) error   { r.count++; return r.err }
func (r *recordSink) RecordAnalysis(AnalysisEvent) error {
	r.count++
	return r.err
}

// pollOnly does not implement the optional recorders.
type pollOnly struct{ polls int }

func (p *pollOnly) RecordSolve(SolveEvent) error { return nil }
func (p *pollOnly) RecordPoll(PollEvent) error   { p.polls++; return nil }

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	p := &pollOnly{}
	m := NewMultiSink(s1, s2, p)
	if err := m.RecordSolve(SolveEvent{JobID: "j"}); err != nil {
		t.Fatalf("record solve: %v", err)
	}
	if err := m.RecordPoll(PollEvent{JobID: "j"}); err != nil {
		t.Fatalf("record poll: %v", err)
	}
	if err := m.RecordAnalysis(AnalysisEvent{}); err != nil {
		t.Fatalf("record analysis: %v", err)
	}
	if err := m.RecordRequest(RequestEvent{}); err != nil {
		t.Fatalf("record request: %v", err)
	}
	if s1.count != 3 || s2.count != 3 || p.polls != 1 {
		t.Fatalf("events not forwarded: %d %d %d", s1.count, s2.count, p.polls)
	}
}

func TestMultiSinkContinuesAfterError(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordSink{err: boom}
	good := &recordSink{}
	err := NewMultiSink(bad, good).RecordPoll(PollEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if good.count != 1 {
		t.Fatalf("second sink not called")
	}
}

type closingSink struct {
	pollOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	c := &closingSink{}
	NewMultiSink(&pollOnly{}, c).Close()
	if !c.closed {
		t.Fatalf("closable sink not closed")
	}
}
