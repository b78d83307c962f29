// Package progress summarizes how a job's score evolved over its history
// samples.
package progress

import (
	"cmp"
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/beamtime/core/score"
	"github.com/kilianp07/beamtime/core/solvelog"
)

// ErrNotEnoughSamples is returned when fewer than two samples are available.
var ErrNotEnoughSamples = errors.New("not enough score samples")

// Sample is one scored snapshot.
type Sample struct {
	At    time.Time
	Score score.Components
}

// Trend describes the score evolution of one job. Rates are least-squares
// slopes in points per minute.
type Trend struct {
	Samples int
	Elapsed time.Duration
	First   score.Components
	Last    score.Components
	Best    score.Components

	HardRate   float64
	MediumRate float64
	SoftRate   float64
}

// Improving reports whether the last sample beats the first.
func (t Trend) Improving() bool { return Better(t.Last, t.First) }

// Better reports whether a is a strictly better score than b. Higher is
// better and levels are compared hard first.
func Better(a, b score.Components) bool {
	return cmp.Or(cmp.Compare(a.Hard, b.Hard), cmp.Compare(a.Medium, b.Medium), cmp.Compare(a.Soft, b.Soft)) > 0
}

// Samples extracts the scored samples from history records, skipping other
// kinds and pending scores.
func Samples(recs []solvelog.Record) []Sample {
	var out []Sample
	for _, r := range recs {
		if r.Kind != solvelog.KindSample || r.Pending || r.Score == "" || r.Score == "?" {
			continue
		}
		out = append(out, Sample{At: r.Timestamp, Score: score.Components{Hard: r.Hard, Medium: r.Medium, Soft: r.Soft}})
	}
	return out
}

// Compute fits a trend over samples, which must be in time order.
func Compute(samples []Sample) (Trend, error) {
	if len(samples) < 2 {
		return Trend{}, ErrNotEnoughSamples
	}
	t := Trend{
		Samples: len(samples),
		Elapsed: samples[len(samples)-1].At.Sub(samples[0].At),
		First:   samples[0].Score,
		Last:    samples[len(samples)-1].Score,
		Best:    samples[0].Score,
	}
	xs := make([]float64, len(samples))
	hard := make([]float64, len(samples))
	medium := make([]float64, len(samples))
	soft := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.At.Sub(samples[0].At).Minutes()
		hard[i] = float64(s.Score.Hard)
		medium[i] = float64(s.Score.Medium)
		soft[i] = float64(s.Score.Soft)
		if Better(s.Score, t.Best) {
			t.Best = s.Score
		}
	}
	if stat.Variance(xs, nil) == 0 {
		// All samples share a timestamp; there is no rate to fit.
		return t, nil
	}
	_, t.HardRate = stat.LinearRegression(xs, hard, nil, false)
	_, t.MediumRate = stat.LinearRegression(xs, medium, nil, false)
	_, t.SoftRate = stat.LinearRegression(xs, soft, nil, false)
	return t, nil
}
