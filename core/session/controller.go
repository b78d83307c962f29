// Package session drives one solve job against the solver backend: it holds
// the current timetable snapshot, submits it, polls the running job and
// stops it, and produces ranked score analyses.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/logger"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/core/monitoring"
	"github.com/kilianp07/beamtime/core/solver"
	"github.com/kilianp07/beamtime/internal/eventbus"
)

var (
	ErrNotIdle        = errors.New("controller is not idle")
	ErrAlreadySolving = errors.New("a solve job is already running")
	ErrNotSolving     = errors.New("no solve job is running")
	ErrStopPending    = errors.New("a stop request is already in flight")
	ErrNoSnapshot     = errors.New("no timetable loaded")
	ErrNoDataset      = errors.New("no dataset or job selected")
	ErrClosed         = errors.New("controller closed")
	// ErrNoScoreToAnalyze is reported inside Report.Unavailable, never
	// returned as an error.
	ErrNoScoreToAnalyze = errors.New("score analysis unavailable until the solution is initialized")
)

// Report is the outcome of RequestAnalysis. When Unavailable is set the
// other fields are empty and the caller should show the message inline.
type Report struct {
	JobID       string
	Score       string
	Rows        []analysis.ConstraintAnalysis
	Summary     analysis.Summary
	Unavailable error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used by the poll loop.
func WithClock(c Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(ctl *Controller) { ctl.log = logger.OrNop(l) } }

// WithMonitor sets the error tracker used for contract violations.
func WithMonitor(m monitoring.Monitor) Option {
	return func(ctl *Controller) { ctl.monitor = monitoring.OrNop(m) }
}

// WithBus publishes events on an externally owned bus. The controller does
// not close it.
func WithBus(b *eventbus.Bus[events.Event]) Option {
	return func(ctl *Controller) {
		if b != nil {
			ctl.bus, ctl.ownBus = b, false
		}
	}
}

// Controller is the solve session state machine. It manages exactly one
// snapshot and at most one active job. All methods are safe for concurrent
// use; network calls never run while the internal lock is held.
type Controller struct {
	client  solver.Client
	cfg     Config
	clock   Clock
	log     logger.Logger
	monitor monitoring.Monitor
	bus     *eventbus.Bus[events.Event]
	ownBus  bool
	runID   string

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	state      events.State
	dataset    string
	jobID      string
	snapshot   *model.Timetable
	generation uint64
	submitting bool
	stopping   bool
	closed     bool
	stopPoll   func()
}

// New creates an idle controller. cfg gets its defaults applied.
func New(client solver.Client, cfg Config, opts ...Option) *Controller {
	cfg.SetDefaults()
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		client:     client,
		cfg:        cfg,
		clock:      RealClock{},
		log:        logger.Nop{},
		monitor:    monitoring.NopMonitor{},
		bus:        eventbus.New[events.Event](),
		ownBus:     true,
		runID:      uuid.NewString(),
		base:       base,
		cancelBase: cancel,
		state:      events.Idle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RunID identifies this controller instance in logs and published feeds.
func (c *Controller) RunID() string { return c.runID }

// State returns the current lifecycle state.
func (c *Controller) State() events.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// JobID returns the active or last job id, empty when none.
func (c *Controller) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// Dataset returns the id of the last loaded demo dataset.
func (c *Controller) Dataset() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dataset
}

// Snapshot returns the held timetable. It must not be modified.
func (c *Controller) Snapshot() *model.Timetable {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Bus exposes the event bus for collectors and publishers.
func (c *Controller) Bus() *eventbus.Bus[events.Event] { return c.bus }

// Events subscribes to controller events.
func (c *Controller) Events() <-chan events.Event { return c.bus.Subscribe() }

// LoadDemoData lists the demo datasets offered by the backend. An empty list
// is reported as solver.ErrNoDataAvailable.
func (c *Controller) LoadDemoData(ctx context.Context) ([]string, error) {
	ids, err := c.client.DemoData(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", solver.ErrNoDataAvailable, err)
	}
	if len(ids) == 0 {
		return nil, solver.ErrNoDataAvailable
	}
	return ids, nil
}

// LoadDataset replaces the snapshot with a demo dataset and forgets the
// previous job. It is only allowed while idle.
func (c *Controller) LoadDataset(ctx context.Context, id string) (*model.Timetable, error) {
	c.mu.Lock()
	if err := c.requireIdleLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	gen := c.generation
	c.mu.Unlock()

	t, err := c.client.DemoTimetable(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		c.monitor.CaptureException(err, map[string]string{"op": "load_dataset", "dataset": id})
		return nil, err
	}

	c.mu.Lock()
	if err := c.requireIdleLocked(); err != nil || c.generation != gen {
		c.mu.Unlock()
		return nil, ErrNotIdle
	}
	c.jobID = ""
	c.dataset = id
	c.snapshot = t
	c.generation++
	c.mu.Unlock()

	c.log.Infof("loaded dataset %s: %d sessions", id, len(t.Sessions))
	c.publish(events.SnapshotApplied{Timetable: t, Source: events.SourceDataset, At: c.clock.Now()})
	return t, nil
}

// LoadJob replaces the snapshot with the current solution of an existing
// job without polling it. Refresh and RequestAnalysis then target that job.
func (c *Controller) LoadJob(ctx context.Context, jobID string) (*model.Timetable, error) {
	if jobID == "" {
		return nil, ErrNoDataset
	}
	c.mu.Lock()
	if err := c.requireIdleLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	gen := c.generation
	c.mu.Unlock()

	t, err := c.client.Timetable(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		c.monitor.CaptureException(err, map[string]string{"op": "load_job", "job_id": jobID})
		return nil, err
	}

	c.mu.Lock()
	if err := c.requireIdleLocked(); err != nil || c.generation != gen {
		c.mu.Unlock()
		return nil, ErrNotIdle
	}
	c.jobID = jobID
	c.dataset = ""
	c.snapshot = t
	c.generation++
	c.mu.Unlock()

	c.log.Infof("loaded job %s: %s", jobID, t.ScoreLabel())
	c.publish(events.SnapshotApplied{JobID: jobID, Timetable: t, Source: events.SourceRefresh, At: c.clock.Now()})
	return t, nil
}

func (c *Controller) requireIdleLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state != events.Idle, c.submitting, c.stopping:
		return ErrNotIdle
	}
	return nil
}

// RequestSolve submits the held snapshot and starts polling the new job.
// On failure the controller stays idle and no poll loop is running. If the
// controller is closed while the submission is in flight, the job id is
// returned with ErrClosed and the caller owns stopping that job.
func (c *Controller) RequestSolve(ctx context.Context) (string, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return "", ErrClosed
	case c.state == events.Solving, c.submitting:
		c.mu.Unlock()
		return "", ErrAlreadySolving
	case c.snapshot == nil:
		c.mu.Unlock()
		return "", ErrNoSnapshot
	}
	c.submitting = true
	c.generation++
	snap := c.snapshot
	c.mu.Unlock()

	jobID, err := c.client.Solve(ctx, snap)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.mu.Unlock()
		c.log.Errorf("solve request failed: %v", err)
		c.publish(events.Failure{Op: "solve", Err: err, At: c.clock.Now()})
		return "", err
	}
	if c.closed {
		c.mu.Unlock()
		c.log.Warnf("controller closed while submitting, job %s is left running on the backend", jobID)
		return jobID, ErrClosed
	}
	c.jobID = jobID
	c.generation++
	ev := c.transitionLocked(events.Solving)
	c.startPollLocked(jobID, c.generation)
	c.mu.Unlock()

	c.log.Infof("solving job %s, polling every %s", jobID, c.cfg.Interval)
	c.publish(ev)
	return jobID, nil
}

// RequestStop terminates the running job. When the backend confirms, polling
// stops, the controller returns to idle and the final snapshot of the job is
// fetched once. A failed stop request leaves the job running.
func (c *Controller) RequestStop(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.stopping:
		c.mu.Unlock()
		return ErrStopPending
	case c.state != events.Solving:
		c.mu.Unlock()
		return ErrNotSolving
	}
	c.stopping = true
	jobID := c.jobID
	c.mu.Unlock()

	err := c.client.StopSolving(ctx, jobID)

	c.mu.Lock()
	c.stopping = false
	if err != nil {
		c.mu.Unlock()
		c.log.Errorf("stop of job %s failed: %v", jobID, err)
		return err
	}
	var evs []events.Event
	if c.state == events.Solving && c.jobID == jobID {
		c.stopPollLocked()
		evs = append(evs, c.transitionLocked(events.Stopped), c.transitionLocked(events.Idle))
	}
	gen := c.generation
	c.mu.Unlock()
	c.publish(evs...)
	c.log.Infof("stopped job %s", jobID)

	t, err := c.client.Timetable(ctx, jobID)
	if err == nil {
		err = t.Validate()
	}
	if err != nil {
		// The job is stopped; only the final refresh is missing.
		c.log.Warnf("final snapshot of job %s: %v", jobID, err)
		c.publish(events.Failure{Op: "final_fetch", JobID: jobID, Err: err, At: c.clock.Now()})
		return nil
	}
	c.mu.Lock()
	applied := c.generation == gen && c.jobID == jobID
	if applied {
		c.snapshot = t
	}
	c.mu.Unlock()
	if applied {
		c.publish(events.SnapshotApplied{JobID: jobID, Timetable: t, Source: events.SourceFinal, At: c.clock.Now()})
	}
	return nil
}

// RequestAnalysis ranks the per-constraint breakdown of the held snapshot.
// While the score is missing or still initializing the report carries
// ErrNoScoreToAnalyze and no request is sent.
func (c *Controller) RequestAnalysis(ctx context.Context) (Report, error) {
	c.mu.Lock()
	snap, jobID := c.snapshot, c.jobID
	c.mu.Unlock()

	if snap == nil || snap.ScorePending() {
		return Report{JobID: jobID, Unavailable: ErrNoScoreToAnalyze}, nil
	}
	res, err := c.client.Analyze(ctx, snap)
	if err != nil {
		return Report{}, err
	}
	tags := map[string]string{"op": "analyze", "job_id": jobID}
	if err := res.Validate(); err != nil {
		c.monitor.CaptureException(err, tags)
		return Report{}, err
	}
	rows, err := analysis.Rank(res.Constraints)
	if err != nil {
		c.monitor.CaptureException(err, tags)
		c.log.Errorf("rank analysis of job %s: %v", jobID, err)
		return Report{}, err
	}
	rep := Report{
		JobID:   jobID,
		Score:   res.Score,
		Rows:    rows,
		Summary: analysis.Summarize(rows),
	}
	if rep.Score == "" {
		rep.Score = snap.ScoreLabel()
	}
	c.publish(events.AnalysisCompleted{JobID: jobID, Summary: rep.Summary, At: c.clock.Now()})
	return rep, nil
}

// Refresh reloads the snapshot of the current job, or of the loaded dataset
// when no job was submitted. A response that raced with a state change is
// discarded and the held snapshot is returned instead.
func (c *Controller) Refresh(ctx context.Context) (*model.Timetable, error) {
	c.mu.Lock()
	jobID, dataset, gen := c.jobID, c.dataset, c.generation
	c.mu.Unlock()

	var (
		t   *model.Timetable
		err error
	)
	switch {
	case jobID != "":
		t, err = c.client.Timetable(ctx, jobID)
	case dataset != "":
		t, err = c.client.DemoTimetable(ctx, dataset)
	default:
		return nil, ErrNoDataset
	}
	if err == nil {
		err = t.Validate()
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation != gen {
		cur := c.snapshot
		c.mu.Unlock()
		return cur, nil
	}
	c.snapshot = t
	c.mu.Unlock()
	c.publish(events.SnapshotApplied{JobID: jobID, Timetable: t, Source: events.SourceRefresh, At: c.clock.Now()})
	return t, nil
}

// Close stops polling and releases the event bus. It does not stop the
// remote job; call RequestStop first for that.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var evs []events.Event
	if c.state == events.Solving {
		c.stopPollLocked()
		evs = append(evs, c.transitionLocked(events.Idle))
	}
	c.mu.Unlock()
	c.publish(evs...)

	c.cancelBase()
	c.wg.Wait()
	if c.ownBus {
		c.bus.Close()
	}
}

func (c *Controller) transitionLocked(to events.State) events.Event {
	ev := events.StateChanged{From: c.state, To: to, JobID: c.jobID, At: c.clock.Now()}
	c.state = to
	return ev
}

func (c *Controller) publish(evs ...events.Event) {
	for _, e := range evs {
		c.bus.Publish(e)
	}
}
