// Package api serves a read-only HTTP view of the running session and its
// recorded history.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	apihistory "github.com/kilianp07/beamtime/api/history"
	apisession "github.com/kilianp07/beamtime/api/session"
	"github.com/kilianp07/beamtime/core/solvelog"
	"github.com/kilianp07/beamtime/infra/logger"
)

// Config enables the API when Addr is set. A non-empty Token is required as
// a bearer token on every request.
type Config struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
}

// Enabled reports whether an address is configured.
func (c Config) Enabled() bool { return c.Addr != "" }

// NewMux routes the API endpoints.
func NewMux(cfg Config, store solvelog.Store, src apisession.Source) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /api/history", apihistory.NewHandler(store, cfg.Token))
	mux.Handle("GET /api/session", apisession.NewStatusHandler(src, cfg.Token))
	mux.Handle("GET /api/session/placements", apisession.NewPlacementsHandler(src, cfg.Token))
	return mux
}

// Serve runs the API on cfg.Addr until ctx is canceled.
func Serve(ctx context.Context, cfg Config, h http.Handler) error {
	srv := &http.Server{Addr: cfg.Addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log := logger.New("api")
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("api shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("serving api on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
