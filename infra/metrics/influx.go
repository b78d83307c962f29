package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	"github.com/kilianp07/beamtime/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// InfluxSink writes solve progress to InfluxDB as time series.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A URL ending in
// /api/v2/write is accepted.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink when
// the health check fails, so an unreachable database never blocks solving.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	p := write.NewPointWithMeasurement("solve_job").
		AddTag("job_id", ev.JobID).
		AddTag("dataset", ev.Dataset).
		AddField("started", ev.Started).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordPoll writes one score sample. Dropped responses are not persisted.
func (s *InfluxSink) RecordPoll(ev coremetrics.PollEvent) error {
	if ev.Dropped {
		return nil
	}
	p := write.NewPointWithMeasurement("score_sample").
		AddTag("job_id", ev.JobID).
		AddTag("status", ev.Status).
		AddField("hard", ev.Score.Hard).
		AddField("medium", ev.Score.Medium).
		AddField("soft", ev.Score.Soft).
		AddField("unassigned", ev.Unassigned).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordAnalysis(ev coremetrics.AnalysisEvent) error {
	p := write.NewPointWithMeasurement("score_analysis").
		AddTag("job_id", ev.JobID).
		AddField("constraints", ev.Summary.Constraints).
		AddField("violated", ev.Summary.Violated).
		AddField("satisfied", ev.Summary.Satisfied).
		AddField("matches", ev.Summary.Matches).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordRequest(ev coremetrics.RequestEvent) error {
	p := write.NewPointWithMeasurement("backend_request").
		AddTag("op", ev.Op).
		AddTag("status", strconv.Itoa(ev.Status)).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		AddField("failed", ev.Failed).
		SetTime(ev.Time)
	return s.write(p)
}
