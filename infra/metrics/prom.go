package metrics

import (
	"errors"
	"strconv"

	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes solve progress as Prometheus metrics.
type PromSink struct {
	solves     *prometheus.CounterVec
	polls      *prometheus.CounterVec
	score      *prometheus.GaugeVec
	unassigned prometheus.Gauge
	analyses   prometheus.Counter
	violated   prometheus.Gauge
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.solves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beamtime_solve_jobs_total",
		Help: "Solve jobs started and finished",
	}, []string{"event"})); err != nil {
		return nil, err
	}
	if s.polls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beamtime_polls_total",
		Help: "Snapshots received while solving",
	}, []string{"status", "dropped"})); err != nil {
		return nil, err
	}
	if s.score, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beamtime_score",
		Help: "Latest score of the running job per level",
	}, []string{"level"})); err != nil {
		return nil, err
	}
	if s.unassigned, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beamtime_unassigned_sessions",
		Help: "Sessions without a slot in the latest snapshot",
	})); err != nil {
		return nil, err
	}
	if s.analyses, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beamtime_analyses_total",
		Help: "Score analyses performed",
	})); err != nil {
		return nil, err
	}
	if s.violated, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beamtime_violated_hard_constraints",
		Help: "Hard constraints broken in the latest analysis",
	})); err != nil {
		return nil, err
	}
	if s.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beamtime_backend_requests_total",
		Help: "Requests sent to the solver backend",
	}, []string{"op", "result"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beamtime_backend_request_seconds",
		Help:    "Solver backend request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	event := "stopped"
	if ev.Started {
		event = "started"
	}
	s.solves.WithLabelValues(event).Inc()
	return nil
}

// RecordPoll counts the sample and, unless it was dropped, updates the
// score gauges.
func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	s.polls.WithLabelValues(ev.Status, strconv.FormatBool(ev.Dropped)).Inc()
	if ev.Dropped {
		return nil
	}
	s.score.WithLabelValues("hard").Set(float64(ev.Score.Hard))
	s.score.WithLabelValues("medium").Set(float64(ev.Score.Medium))
	s.score.WithLabelValues("soft").Set(float64(ev.Score.Soft))
	s.unassigned.Set(float64(ev.Unassigned))
	return nil
}

func (s *PromSink) RecordAnalysis(ev coremetrics.AnalysisEvent) error {
	s.analyses.Inc()
	s.violated.Set(float64(ev.Summary.Violated))
	return nil
}

func (s *PromSink) RecordRequest(ev coremetrics.RequestEvent) error {
	result := "ok"
	if ev.Failed {
		result = "error"
	}
	s.requests.WithLabelValues(ev.Op, result).Inc()
	s.latency.WithLabelValues(ev.Op).Observe(ev.Duration.Seconds())
	return nil
}
