package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/beamtime/core/score"
	"github.com/kilianp07/beamtime/core/solvelog"
)

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestComputeLinearTrend(t *testing.T) {
	var samples []Sample
	for i := 0; i < 5; i++ {
		samples = append(samples, Sample{
			At:    t0.Add(time.Duration(i) * time.Minute),
			Score: score.Components{Medium: int64(-10 + 2*i), Soft: -3},
		})
	}
	tr, err := Compute(samples)
	require.NoError(t, err)
	assert.Equal(t, 5, tr.Samples)
	assert.Equal(t, 4*time.Minute, tr.Elapsed)
	assert.InDelta(t, 2.0, tr.MediumRate, 1e-9)
	assert.InDelta(t, 0.0, tr.SoftRate, 1e-9)
	assert.Equal(t, score.Components{Medium: -2, Soft: -3}, tr.Best)
	assert.True(t, tr.Improving())
}

func TestComputeNeedsTwoSamples(t *testing.T) {
	_, err := Compute([]Sample{{At: t0}})
	require.ErrorIs(t, err, ErrNotEnoughSamples)
}

func TestComputeSameTimestamp(t *testing.T) {
	tr, err := Compute([]Sample{
		{At: t0, Score: score.Components{Hard: -1}},
		{At: t0, Score: score.Components{Soft: -5}},
	})
	require.NoError(t, err)
	assert.Zero(t, tr.HardRate)
	assert.Equal(t, score.Components{Soft: -5}, tr.Best)
}

func TestBetter(t *testing.T) {
	assert.True(t, Better(score.Components{Medium: -1, Soft: -100}, score.Components{Medium: -2}))
	assert.False(t, Better(score.Components{Hard: -1}, score.Components{Soft: -1000}))
	assert.False(t, Better(score.Components{}, score.Components{}))
}

func TestSamplesFiltersRecords(t *testing.T) {
	recs := []solvelog.Record{
		{Kind: solvelog.KindState, Timestamp: t0},
		{Kind: solvelog.KindSample, Timestamp: t0, Score: "-1init/0hard/0medium/0soft", Pending: true},
		{Kind: solvelog.KindSample, Timestamp: t0.Add(time.Second), Score: "?"},
		{Kind: solvelog.KindSample, Timestamp: t0.Add(2 * time.Second), Score: "0hard/-1medium/0soft", Medium: -1},
	}
	s := Samples(recs)
	require.Len(t, s, 1)
	assert.Equal(t, int64(-1), s[0].Score.Medium)
}
