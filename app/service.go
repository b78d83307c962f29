// Package app wires the configuration into a ready-to-use solve session.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/beamtime/api"
	"github.com/kilianp07/beamtime/config"
	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	coremon "github.com/kilianp07/beamtime/core/monitoring"
	"github.com/kilianp07/beamtime/core/session"
	"github.com/kilianp07/beamtime/core/solver"
	"github.com/kilianp07/beamtime/core/solvelog"
	"github.com/kilianp07/beamtime/infra/logger"
	"github.com/kilianp07/beamtime/infra/metrics"
	"github.com/kilianp07/beamtime/infra/monitoring"
	"github.com/kilianp07/beamtime/infra/mqtt"
	"github.com/kilianp07/beamtime/infra/solverapi"
)

const flushTimeout = 2 * time.Second

// Service owns the session controller and every subscriber attached to its
// event bus.
type Service struct {
	Config     *config.Config
	Client     solver.Client
	Controller *session.Controller
	History    solvelog.Store

	log       logger.Logger
	monitor   coremon.Monitor
	sink      coremetrics.MetricsSink
	publisher *mqtt.Publisher
	cancel    context.CancelFunc
	done      []<-chan struct{}
}

// New builds the backend client, the controller and its subscribers from
// cfg. Close must be called to release them.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")
	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	opts := []solverapi.Option{solverapi.WithLogger(logger.New("solverapi"))}
	if rr, ok := sink.(coremetrics.RequestRecorder); ok {
		opts = append(opts, solverapi.WithRecorder(rr))
	}
	client, err := solverapi.NewClient(cfg.Backend, opts...)
	if err != nil {
		return nil, fmt.Errorf("solver client: %w", err)
	}

	store, err := solvelog.Open(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	var pub *mqtt.Publisher
	if cfg.Notify.Enabled() {
		pub, err = mqtt.NewPublisher(cfg.Notify, mqtt.WithLogger(logger.New("mqtt")), mqtt.WithMonitor(monitor))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	}

	ctl := session.New(client, cfg.Poll,
		session.WithLogger(logger.New("session")),
		session.WithMonitor(monitor),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		Config:     cfg,
		Client:     client,
		Controller: ctl,
		History:    store,
		log:        log,
		monitor:    monitor,
		sink:       sink,
		publisher:  pub,
		cancel:     cancel,
	}
	bus := ctl.Bus()
	s.done = append(s.done,
		metrics.StartEventCollector(ctx, bus, sink),
		solvelog.StartRecorder(ctx, bus, store, ctl.RunID(), logger.New("history")),
	)
	if pub != nil {
		s.done = append(s.done, mqtt.StartFeed(ctx, bus, pub, logger.New("mqtt-feed")))
	}
	if cfg.API.Enabled() {
		mux := api.NewMux(cfg.API, store, ctl)
		go func() {
			if err := api.Serve(ctx, cfg.API, mux); err != nil {
				log.Errorf("api server: %v", err)
			}
		}()
	}
	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}
	log.Infof("session %s ready against %s", ctl.RunID(), cfg.Backend.BaseURL)
	return s, nil
}

// Close stops the controller, waits for the subscribers to drain the bus and
// releases the outputs. The remote job is left untouched.
func (s *Service) Close() error {
	s.Controller.Close()
	for _, d := range s.done {
		<-d
	}
	s.cancel()

	var errs []error
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if err := s.History.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.monitor.Flush(flushTimeout)
	return errors.Join(errs...)
}

// Recover reports a panic to the monitor and re-panics. Use it deferred at
// the top of a command.
func (s *Service) Recover() {
	if v := recover(); v != nil {
		s.monitor.CapturePanic(v)
		panic(v)
	}
}
