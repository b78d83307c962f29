package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/logger"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/core/solver"
)

type fakeTicker struct {
	d       time.Duration
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// tick delivers one tick and reports whether the poll loop accepted it.
func (f *fakeTicker) tick() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{d: d, ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) all() []*fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTicker(nil), c.tickers...)
}

type fakeClient struct {
	mu          sync.Mutex
	datasets    []string
	datasetsErr error
	demo        map[string]*model.Timetable
	solveJob    string
	solveErr    error
	onSolve     func()
	poll        func(ctx context.Context, jobID string) (*model.Timetable, error)
	stop        func(ctx context.Context, jobID string) error
	result      *analysis.Result
	analyzeErr  error
	calls       map[string]int
	submitted   []*model.Timetable
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: map[string]int{}, solveJob: "job-1", demo: map[string]*model.Timetable{}}
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) inc(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeClient) DemoData(context.Context) ([]string, error) {
	f.inc("demo-data")
	return f.datasets, f.datasetsErr
}

func (f *fakeClient) DemoTimetable(_ context.Context, id string) (*model.Timetable, error) {
	f.inc("demo-timetable")
	t, ok := f.demo[id]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s: 404", solver.ErrNetworkFailure, id)
	}
	return t, nil
}

func (f *fakeClient) Solve(_ context.Context, t *model.Timetable) (string, error) {
	f.inc("solve")
	f.mu.Lock()
	f.submitted = append(f.submitted, t)
	f.mu.Unlock()
	if f.onSolve != nil {
		f.onSolve()
	}
	if f.solveErr != nil {
		return "", f.solveErr
	}
	return f.solveJob, nil
}

func (f *fakeClient) Timetable(ctx context.Context, jobID string) (*model.Timetable, error) {
	f.inc("timetable")
	if f.poll == nil {
		return nil, errors.New("no poll handler")
	}
	return f.poll(ctx, jobID)
}

func (f *fakeClient) StopSolving(ctx context.Context, jobID string) error {
	f.inc("stop")
	if f.stop == nil {
		return nil
	}
	return f.stop(ctx, jobID)
}

func (f *fakeClient) Analyze(context.Context, *model.Timetable) (*analysis.Result, error) {
	f.inc("analyze")
	return f.result, f.analyzeErr
}

type fakeMonitor struct {
	mu       sync.Mutex
	captured []error
}

func (m *fakeMonitor) CaptureException(err error, _ map[string]string) {
	m.mu.Lock()
	m.captured = append(m.captured, err)
	m.mu.Unlock()
}
func (m *fakeMonitor) CapturePanic(any)    {}
func (m *fakeMonitor) Flush(time.Duration) {}

func (m *fakeMonitor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captured)
}

// timetable builds a small valid snapshot. When bound is set, session s1 is
// placed on slot "2024-05-01/0" and beamline "A".
func timetable(name, score string, status model.SolverStatus, bound bool) *model.Timetable {
	t := &model.Timetable{
		Name:          name,
		SolverStatus:  status,
		BeamtimeSlots: []model.BeamtimeSlot{{ID: "2024-05-01/0"}},
		Beamlines:     []model.Beamline{{ID: "A"}, {ID: "B"}},
		Sessions:      []model.Session{{ID: "s1"}},
	}
	if score != "" {
		t.Score = &score
	}
	if bound {
		slot, line := "2024-05-01/0", "A"
		t.Sessions[0].SlotID, t.Sessions[0].BeamlineID = &slot, &line
	}
	return t
}

// waitFor returns the next event of type T, skipping others.
func waitFor[T events.Event](t *testing.T, ch <-chan events.Event) T {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %T", *new(T))
			}
			if e, ok := ev.(T); ok {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func newTestController(t *testing.T, client *fakeClient, cfg Config, opts ...Option) (*Controller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	opts = append([]Option{WithClock(clock)}, opts...)
	c := New(client, cfg, opts...)
	t.Cleanup(c.Close)
	return c, clock
}

type warnLog struct {
	logger.Nop
	mu    sync.Mutex
	warns []string
}

func (l *warnLog) Warnf(format string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *warnLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
