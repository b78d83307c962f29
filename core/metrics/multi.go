package metrics

import "errors"

// MultiSink fans events out to several sinks. Every sink is called even when
// an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSolve(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordPoll(ev PollEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordPoll(ev))
	}
	return errors.Join(errs...)
}

// RecordAnalysis forwards to sinks implementing AnalysisRecorder.
func (m *MultiSink) RecordAnalysis(ev AnalysisEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(AnalysisRecorder); ok {
			errs = append(errs, r.RecordAnalysis(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordRequest forwards to sinks implementing RequestRecorder.
func (m *MultiSink) RecordRequest(ev RequestEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(RequestRecorder); ok {
			errs = append(errs, r.RecordRequest(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that hold resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
