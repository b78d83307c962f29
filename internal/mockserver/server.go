// Package mockserver is a fake solver backend. It serves the REST endpoints
// the client consumes and advances a submitted job by placing one session per
// poll, which is enough to exercise the client end to end. It does not
// optimize anything.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/infra/logger"
)

type job struct {
	tt     *model.Timetable
	active bool
}

// Server is the fake backend.
type Server struct {
	log      logger.Logger
	requests *prometheus.CounterVec

	mu       sync.Mutex
	addr     string
	datasets map[string]*model.Timetable
	jobs     map[string]*job
	failures map[string]int
	newID    func() string
}

// Option customizes a Server.
type Option func(*Server)

// WithDatasets replaces the built-in demo datasets.
func WithDatasets(ds map[string]*model.Timetable) Option {
	return func(s *Server) { s.datasets = ds }
}

// WithJobIDs sets the job id generator.
func WithJobIDs(f func() string) Option { return func(s *Server) { s.newID = f } }

// New creates a server listening on addr once started, with metrics on the
// default Prometheus registerer.
func New(addr string, opts ...Option) *Server {
	return NewWithRegistry(addr, prometheus.DefaultRegisterer, opts...)
}

// NewWithRegistry creates a server and registers its request counter on reg.
// If reg is nil the default registerer is used.
func NewWithRegistry(addr string, reg prometheus.Registerer, opts ...Option) *Server {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	log := logger.New("mock-backend")
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mock_backend_requests_total",
		Help: "Requests served by the fake solver backend",
	}, []string{"op", "code"})
	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				requests = exist
			} else {
				log.Errorf("existing collector for mock_backend_requests_total has wrong type %T", are.ExistingCollector)
			}
		}
	}
	s := &Server{
		addr:     addr,
		log:      log,
		requests: requests,
		datasets: DefaultDatasets(),
		jobs:     map[string]*job{},
		failures: map[string]int{},
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FailWith makes every request of op answer with status until cleared with
// status 0. Ops: demo_data, demo_timetable, solve, timetable, stop, analyze.
func (s *Server) FailWith(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, op)
		return
	}
	s.failures[op] = status
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /demo-data", s.wrap("demo_data", s.handleDemoData))
	mux.HandleFunc("GET /demo-data/{id}", s.wrap("demo_timetable", s.handleDemoTimetable))
	mux.HandleFunc("POST /timetables", s.wrap("solve", s.handleSolve))
	mux.HandleFunc("PUT /timetables/analyze", s.wrap("analyze", s.handleAnalyze))
	mux.HandleFunc("GET /timetables/{jobId}", s.wrap("timetable", s.handleTimetable))
	mux.HandleFunc("DELETE /timetables/{jobId}", s.wrap("stop", s.handleStop))
	return mux
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) wrap(op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		s.mu.Lock()
		status := s.failures[op]
		s.mu.Unlock()
		if status != 0 {
			http.Error(sw, "injected failure", status)
		} else {
			h(sw, r)
		}
		s.requests.WithLabelValues(op, http.StatusText(sw.code)).Inc()
	}
}

func (s *Server) handleDemoData(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.datasets))
	for id := range s.datasets {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	s.writeJSON(w, ids)
}

func (s *Server) handleDemoTimetable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	t, ok := s.datasets[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown dataset", http.StatusNotFound)
		return
	}
	s.writeJSON(w, t)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	t, ok := s.readTimetable(w, r)
	if !ok {
		return
	}
	t = t.Clone()
	t.SolverStatus = model.SolvingActive
	init := evaluate(t).Score
	if n := len(t.Unassigned()); n > 0 {
		init = "-" + strconv.Itoa(n) + "init/" + init
	}
	t.Score = &init

	s.mu.Lock()
	id := s.newID()
	s.jobs[id] = &job{tt: t, active: true}
	s.mu.Unlock()

	s.log.Infof("accepted job %s for %q", id, t.Name)
	w.Header().Set("Content-Type", "text/plain")
	if _, err := io.WriteString(w, id); err != nil {
		s.log.Errorf("write job id: %v", err)
	}
}

func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobs[r.PathValue("jobId")]
	var (
		data []byte
		err  error
	)
	if ok {
		if j.active {
			var placed bool
			j.tt, placed = step(j.tt)
			if !placed || len(j.tt.Unassigned()) == 0 {
				j.active = false
			}
		}
		if !j.active {
			j.tt.SolverStatus = model.NotSolving
		}
		data, err = json.Marshal(j.tt)
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		s.log.Errorf("write timetable: %v", err)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobs[r.PathValue("jobId")]
	if ok {
		j.active = false
		j.tt.SolverStatus = model.NotSolving
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	t, ok := s.readTimetable(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, evaluate(t))
}

func (s *Server) readTimetable(w http.ResponseWriter, r *http.Request) (*model.Timetable, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return nil, false
	}
	t, err := model.DecodeTimetable(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return t, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("encode response: %v", err)
	}
}

// Addr returns the listening address, resolved once Listen or Start has
// bound the socket.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Listen binds the configured address and returns the resolved one, so a
// ":0" address can be dialed before Serve runs.
func (s *Server) Listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	s.addr = ln.Addr().String()
	return ln, nil
}

// Serve handles requests on ln until the context is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
		cancel()
	}()
	s.log.Infof("mock backend listening on %s", ln.Addr())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens and serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
