package cmd

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/beamtime/internal/mockserver"
)

// setup points the CLI at a fresh fake backend and a temporary history file.
func setup(t *testing.T) {
	t.Helper()
	backend := mockserver.NewWithRegistry("", prometheus.NewRegistry())
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("BT_BACKEND__BASE_URL", srv.URL)
	t.Setenv("BT_POLL__INTERVAL", "10ms")
	t.Setenv("BT_HISTORY__PATH", filepath.Join(dir, "history.jsonl"))
	cfgPath = filepath.Join(dir, "absent.yaml")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--no-color", "--config", cfgPath))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDatasetsCommand(t *testing.T) {
	setup(t)
	out, err := execute(t, "datasets")
	require.NoError(t, err)
	assert.Equal(t, "LARGE\nSMALL\n", out)
}

func TestShowCommand(t *testing.T) {
	setup(t)
	out, err := execute(t, "show", "--dataset", "SMALL", "--export", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: ?")
	assert.Contains(t, out, "Unassigned sessions (8)")

	out, err = execute(t, "show", "--dataset", "SMALL", "--export", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "session_id,proposal,slot_id,date,hour,beam_mode,beamline_id,beamline_name", lines[0])
	assert.Len(t, lines, 9)

	_, err = execute(t, "show", "--dataset", "SMALL", "--export", "xml")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestSolveAndHistoryCommands(t *testing.T) {
	setup(t)
	out, err := execute(t, "solve", "--dataset", "SMALL", "--analyze", "--grid=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Solving job")
	assert.Contains(t, out, "Unassigned sessions (0)")
	assert.Contains(t, out, "Score analysis")

	out, err = execute(t, "history", "--job", "", "--kind", "sample", "--chart", "")
	require.NoError(t, err)
	assert.Contains(t, out, "NOT_SOLVING")
	assert.Contains(t, out, "Trend over")
}

func TestSolveEndsWhenBackendFinishes(t *testing.T) {
	setup(t)
	t.Setenv("BT_POLL__STOP_WHEN_NOT_SOLVING", "false")

	done := make(chan error, 1)
	var out string
	go func() {
		var err error
		out, err = execute(t, "solve", "--dataset", "SMALL")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Contains(t, out, "NOT_SOLVING")
		assert.Contains(t, out, "Unassigned sessions (0)")
	case <-time.After(10 * time.Second):
		t.Fatal("solve still running after the backend finished the job")
	}
}

func TestAnalyzeDatasetWithoutScore(t *testing.T) {
	setup(t)
	out, err := execute(t, "analyze", "--dataset", "SMALL", "--job", "")
	require.NoError(t, err)
	assert.Contains(t, out, "No score to analyze yet")
}
