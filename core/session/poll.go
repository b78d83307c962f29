package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/beamtime/core/events"
)

// startPollLocked launches the poll loop for jobID. A loop that is already
// running is left untouched.
func (c *Controller) startPollLocked(jobID string, gen uint64) {
	if c.stopPoll != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	var once sync.Once
	c.stopPoll = func() {
		once.Do(func() {
			close(done)
			cancel()
		})
	}
	ticker := c.clock.NewTicker(c.cfg.Interval)
	c.wg.Add(1)
	go c.pollLoop(ctx, jobID, gen, ticker, done)
}

// stopPollLocked cancels the loop and any fetch it has in flight. Bumping
// the generation makes late responses of the old loop stale.
func (c *Controller) stopPollLocked() {
	if c.stopPoll == nil {
		return
	}
	c.stopPoll()
	c.stopPoll = nil
	c.generation++
}

func (c *Controller) pollLoop(ctx context.Context, jobID string, gen uint64, ticker Ticker, done <-chan struct{}) {
	defer c.wg.Done()
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			c.monitor.CapturePanic(r)
			panic(r)
		}
	}()
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			select {
			case <-done:
				return
			default:
			}
			c.pollOnce(ctx, jobID, gen)
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context, jobID string, gen uint64) {
	t, err := c.client.Timetable(ctx, jobID)
	if err == nil {
		if verr := t.Validate(); verr != nil {
			c.monitor.CaptureException(verr, map[string]string{"op": "poll", "job_id": jobID})
			err = verr
		}
	}

	c.mu.Lock()
	if c.state != events.Solving || c.generation != gen {
		c.mu.Unlock()
		c.log.Debugw("dropping stale poll response", map[string]any{"job_id": jobID})
		c.publish(events.PollDropped{JobID: jobID, At: c.clock.Now()})
		return
	}
	if err != nil {
		c.stopPollLocked()
		ev := c.transitionLocked(events.Idle)
		c.mu.Unlock()
		c.log.Errorf("poll of job %s failed, polling stopped: %v", jobID, err)
		c.publish(ev, events.Failure{Op: "poll", JobID: jobID, Err: fmt.Errorf("poll job %s: %w", jobID, err), At: c.clock.Now()})
		return
	}
	c.snapshot = t
	evs := []events.Event{events.SnapshotApplied{JobID: jobID, Timetable: t, Source: events.SourcePoll, At: c.clock.Now()}}
	if c.cfg.StopWhenNotSolving && !t.SolverStatus.Active() {
		c.stopPollLocked()
		evs = append(evs, c.transitionLocked(events.Idle))
	}
	c.mu.Unlock()

	c.log.Debugw("applied poll snapshot", map[string]any{"job_id": jobID, "score": t.ScoreLabel(), "status": string(t.SolverStatus)})
	c.publish(evs...)
}
