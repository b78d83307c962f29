package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/beamtime/core/solvelog"
)

type memStore struct {
	recs []solvelog.Record
	last solvelog.Query
}

func (m *memStore) Append(_ context.Context, r solvelog.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q solvelog.Query) ([]solvelog.Record, error) {
	m.last = q
	var res []solvelog.Record
	for _, r := range m.recs {
		if q.JobID != "" && r.JobID != q.JobID {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestHandlerAuthAndFilters(t *testing.T) {
	store := &memStore{}
	now := time.Now()
	for _, job := range []string{"j1", "j2"} {
		if err := store.Append(context.Background(), solvelog.Record{JobID: job, Kind: solvelog.KindSample, Timestamp: now}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	h := NewHandler(store, "tok")

	req := httptest.NewRequest(http.MethodGet, "/api/history?job_id=j1&kind=sample&start=2024-05-01T00:00:00Z", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var recs []solvelog.Record
	if err := json.NewDecoder(rr.Body).Decode(&recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].JobID != "j1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if store.last.Kind != solvelog.KindSample || store.last.Start.IsZero() || !store.last.End.IsZero() {
		t.Fatalf("query not forwarded: %+v", store.last)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	h := NewHandler(&memStore{}, "")
	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/history?start=yesterday", http.StatusBadRequest},
		{http.MethodGet, "/api/history?end=2024-13-01", http.StatusBadRequest},
		{http.MethodPost, "/api/history", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/history?job_id=none", http.StatusOK},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.target, nil))
		if rr.Code != tt.want {
			t.Errorf("%s %s: got %d want %d", tt.method, tt.target, rr.Code, tt.want)
		}
	}
}

func TestHandlerEmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(&memStore{}, "").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if got := rr.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty array, got %q", got)
	}
}
