package solvelog

import (
	"context"
	"time"

	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/logger"
	"github.com/kilianp07/beamtime/internal/eventbus"
)

const appendTimeout = 5 * time.Second

// StartRecorder appends every history-worthy controller event to store. The
// returned channel is closed once the recorder exits, which happens when ctx
// is canceled or the bus is closed. Events still buffered when the bus closes
// are written first.
func StartRecorder(ctx context.Context, bus *eventbus.Bus[events.Event], store Store, runID string, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.SubscribeN(256)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				rec, keep := FromEvent(runID, ev)
				if !keep {
					continue
				}
				actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
				if err := store.Append(actx, rec); err != nil {
					log.Warnf("append %s record for job %s: %v", rec.Kind, rec.JobID, err)
				}
				cancel()
			}
		}
	}()
	return done
}
