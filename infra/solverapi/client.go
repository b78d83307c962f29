// Package solverapi is the HTTP implementation of solver.Client.
package solverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker/v2"

	"github.com/kilianp07/beamtime/auth"
	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/logger"
	coremetrics "github.com/kilianp07/beamtime/core/metrics"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/core/solver"
)

const (
	acceptHeader = "application/json,text/plain"
	maxErrorBody = 256
)

var _ solver.Client = (*Client)(nil)

// Client talks to the solver backend over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	rec     coremetrics.RequestRecorder
	log     logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Authentication set up
// from the config wraps the given client's transport.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithRecorder records every request on r.
func WithRecorder(r coremetrics.RequestRecorder) Option { return func(c *Client) { c.rec = r } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = logger.OrNop(l) } }

type response struct {
	status int
	body   []byte
}

// NewClient builds a client from cfg after applying its defaults.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: cfg.Timeout},
		rec:  coremetrics.NopSink{},
		log:  logger.Nop{},
	}
	for _, o := range opts {
		o(c)
	}
	if cfg.Auth.Enabled() {
		hc := *c.http
		hc.Transport = auth.NewClientCred(cfg.Auth).Transport(hc.Transport)
		c.http = &hc
	}
	if cfg.Breaker.Enabled {
		c.breaker = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
			Name:    "solver-backend",
			Timeout: cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
	}
	return c, nil
}

// DemoData lists the demo dataset ids.
func (c *Client) DemoData(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, "demo_data", http.MethodGet, "/demo-data", nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(resp.body, &ids); err != nil {
		return nil, fmt.Errorf("%w: decode demo data list: %v", solver.ErrNetworkFailure, err)
	}
	return ids, nil
}

// DemoTimetable fetches one demo dataset.
func (c *Client) DemoTimetable(ctx context.Context, id string) (*model.Timetable, error) {
	resp, err := c.do(ctx, "demo_timetable", http.MethodGet, "/demo-data/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return model.DecodeTimetable(resp.body)
}

// Solve submits t and returns the job id, which the backend sends as plain
// text.
func (c *Client) Solve(ctx context.Context, t *model.Timetable) (string, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode timetable: %w", err)
	}
	resp, err := c.do(ctx, "solve", http.MethodPost, "/timetables", body)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(resp.body))
	if id == "" {
		return "", fmt.Errorf("%w: solve returned an empty job id", solver.ErrNetworkFailure)
	}
	return id, nil
}

// Timetable fetches the current best solution of a job.
func (c *Client) Timetable(ctx context.Context, jobID string) (*model.Timetable, error) {
	resp, err := c.do(ctx, "timetable", http.MethodGet, "/timetables/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	return model.DecodeTimetable(resp.body)
}

// StopSolving terminates a job. The response body is ignored.
func (c *Client) StopSolving(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, "stop", http.MethodDelete, "/timetables/"+url.PathEscape(jobID), nil)
	return err
}

// Analyze requests the constraint breakdown of t.
func (c *Client) Analyze(ctx context.Context, t *model.Timetable) (*analysis.Result, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode timetable: %w", err)
	}
	resp, err := c.do(ctx, "analyze", http.MethodPut, "/timetables/analyze", body)
	if err != nil {
		return nil, err
	}
	var res analysis.Result
	if err := json.Unmarshal(resp.body, &res); err != nil {
		return nil, fmt.Errorf("%w: decode analysis: %v", analysis.ErrInvalidResult, err)
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (response, error) {
	start := time.Now()
	var (
		resp response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(func() (response, error) {
			return c.roundTrip(ctx, method, path, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %s %s: %v", solver.ErrNetworkFailure, method, path, err)
		}
	} else {
		resp, err = c.roundTrip(ctx, method, path, body)
	}
	if rerr := c.rec.RecordRequest(coremetrics.RequestEvent{
		Op:       op,
		Status:   resp.status,
		Duration: time.Since(start),
		Failed:   err != nil,
		Time:     start,
	}); rerr != nil {
		c.log.Warnf("record request metric: %v", rerr)
	}
	if err != nil {
		c.log.Debugw("backend request failed", map[string]any{"op": op, "status": resp.status, "error": err.Error()})
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rd)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", acceptHeader)

	res, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %s %s: %w", solver.ErrNetworkFailure, method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return response{status: res.StatusCode}, fmt.Errorf("%w: %s %s: read body: %w", solver.ErrNetworkFailure, method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return response{status: res.StatusCode}, fmt.Errorf("%w: %s %s: status %d: %s",
			solver.ErrNetworkFailure, method, path, res.StatusCode, truncate(data))
	}
	return response{status: res.StatusCode, body: data}, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
