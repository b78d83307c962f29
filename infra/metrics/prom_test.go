package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/beamtime/core/analysis"
	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	"github.com/kilianp07/beamtime/core/score"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordSolve(coremetrics.SolveEvent{JobID: "j", Started: true}))
	require.NoError(t, s.RecordPoll(coremetrics.PollEvent{
		JobID:      "j",
		Status:     "SOLVING_ACTIVE",
		Score:      score.Components{Hard: -2, Soft: -30},
		Unassigned: 4,
	}))
	require.NoError(t, s.RecordPoll(coremetrics.PollEvent{JobID: "j", Dropped: true}))
	require.NoError(t, s.RecordAnalysis(coremetrics.AnalysisEvent{Summary: analysis.Summary{Violated: 3}}))
	require.NoError(t, s.RecordRequest(coremetrics.RequestEvent{Op: "solve", Duration: 20 * time.Millisecond}))
	require.NoError(t, s.RecordRequest(coremetrics.RequestEvent{Op: "solve", Failed: true}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.solves.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.polls.WithLabelValues("SOLVING_ACTIVE", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.polls.WithLabelValues("", "true")))
	assert.Equal(t, -2.0, testutil.ToFloat64(s.score.WithLabelValues("hard")))
	assert.Equal(t, -30.0, testutil.ToFloat64(s.score.WithLabelValues("soft")))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.unassigned))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.violated))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("solve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("solve", "error")))
}

func TestPromSinkReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, a.RecordSolve(coremetrics.SolveEvent{Started: true}))
	require.NoError(t, b.RecordSolve(coremetrics.SolveEvent{Started: true}))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.solves.WithLabelValues("started")))
}
