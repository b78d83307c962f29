package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/beamtime/core/analysis"
	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	"github.com/kilianp07/beamtime/core/score"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(b)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordPoll(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.PollEvent{
		JobID:      "job-1",
		Status:     "SOLVING_ACTIVE",
		Score:      score.Components{Hard: -1, Medium: 0, Soft: -12},
		Unassigned: 2,
		Time:       now,
	}
	if err := sink.RecordPoll(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if err := sink.RecordPoll(coremetrics.PollEvent{JobID: "job-1", Dropped: true, Time: now}); err != nil {
		t.Fatalf("record dropped: %v", err)
	}
	p := write.NewPointWithMeasurement("score_sample").
		AddTag("job_id", "job-1").
		AddTag("status", "SOLVING_ACTIVE").
		AddField("hard", int64(-1)).
		AddField("medium", int64(0)).
		AddField("soft", int64(-12)).
		AddField("unassigned", 2).
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != line(p) {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordAnalysis(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	sum := analysis.Summary{Constraints: 5, Violated: 1, Satisfied: 2, Matches: 9}
	if err := sink.RecordAnalysis(coremetrics.AnalysisEvent{JobID: "j", Summary: sum, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("score_analysis").
		AddTag("job_id", "j").
		AddField("constraints", 5).
		AddField("violated", 1).
		AddField("satisfied", 2).
		AddField("matches", 9).
		SetTime(now)
	if len(rec.bodies) != 1 || rec.bodies[0] != line(p) {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
