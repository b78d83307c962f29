package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/beamtime/core/progress"
)

// WriteScoreChart renders the score samples of a job as an HTML line chart
// with one series per level.
func WriteScoreChart(w io.Writer, title string, samples []progress.Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no score samples to chart")
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Score per level"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{}),
	)

	xAxis := make([]string, len(samples))
	hard := make([]opts.LineData, len(samples))
	medium := make([]opts.LineData, len(samples))
	soft := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xAxis[i] = s.At.Format("15:04:05")
		hard[i] = opts.LineData{Value: s.Score.Hard}
		medium[i] = opts.LineData{Value: s.Score.Medium}
		soft[i] = opts.LineData{Value: s.Score.Soft}
	}
	line.SetXAxis(xAxis).
		AddSeries("hard", hard).
		AddSeries("medium", medium).
		AddSeries("soft", soft)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
