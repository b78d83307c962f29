package session

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/pkg/export"
)

// Source is the read side of the session controller.
type Source interface {
	RunID() string
	State() events.State
	JobID() string
	Dataset() string
	Snapshot() *model.Timetable
}

// Status is the body of GET /api/session.
type Status struct {
	RunID        string       `json:"run_id"`
	State        events.State `json:"state"`
	JobID        string       `json:"job_id,omitempty"`
	Dataset      string       `json:"dataset,omitempty"`
	Name         string       `json:"name,omitempty"`
	Score        string       `json:"score,omitempty"`
	SolverStatus string       `json:"solver_status,omitempty"`
	Assigned     int          `json:"assigned"`
	Unassigned   int          `json:"unassigned"`
}

// NewStatus snapshots src.
func NewStatus(src Source) Status {
	st := Status{
		RunID:   src.RunID(),
		State:   src.State(),
		JobID:   src.JobID(),
		Dataset: src.Dataset(),
	}
	if t := src.Snapshot(); t != nil {
		st.Name = t.Name
		st.Score = t.ScoreLabel()
		st.SolverStatus = string(t.SolverStatus)
		st.Assigned = len(t.Assigned())
		st.Unassigned = len(t.Unassigned())
	}
	return st
}

func authorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// NewStatusHandler serves GET /api/session.
func NewStatusHandler(src Source, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(NewStatus(src)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// NewPlacementsHandler serves GET /api/session/placements. The format query
// parameter selects json (default), csv or yaml.
func NewPlacementsHandler(src Source, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		t := src.Snapshot()
		if t == nil {
			http.Error(w, "no timetable loaded", http.StatusNotFound)
			return
		}
		format := r.URL.Query().Get("format")
		switch format {
		case "", "json":
			format = "json"
			w.Header().Set("Content-Type", "application/json")
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
		case "yaml", "yml":
			w.Header().Set("Content-Type", "application/yaml")
		default:
			http.Error(w, "unknown format "+format, http.StatusBadRequest)
			return
		}
		if err := export.Write(w, format, t); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
