package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/beamtime/core/monitoring"
)

type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions) {}
func (t *recordingTransport) SendEvent(e *sentry.Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}
func (t *recordingTransport) Flush(time.Duration) bool { return true }
func (t *recordingTransport) FlushWithContext(context.Context) bool { return true }
func (t *recordingTransport) Close() {}

func (t *recordingTransport) all() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func newTestMonitor(t *testing.T) (*sentryMonitor, *recordingTransport) {
	t.Helper()
	tr := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "", Transport: tr})
	require.NoError(t, err)
	return newSentryMonitor(sentry.NewHub(client, sentry.NewScope())), tr
}

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(Config{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestCaptureExceptionTags(t *testing.T) {
	m, tr := newTestMonitor(t)
	m.CaptureException(nil, nil)
	m.CaptureException(errors.New("bad snapshot"), map[string]string{"op": "poll"})

	evs := tr.all()
	require.Len(t, evs, 1)
	assert.Equal(t, "poll", evs[0].Tags["op"])
	require.NotEmpty(t, evs[0].Exception)
	assert.Equal(t, "bad snapshot", evs[0].Exception[0].Value)
}

func TestCapturePanic(t *testing.T) {
	m, tr := newTestMonitor(t)
	m.CapturePanic(nil)
	m.CapturePanic("boom")
	assert.Len(t, tr.all(), 1)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{TracesSampleRate: 0.5}.Validate())
	assert.Error(t, Config{TracesSampleRate: 2}.Validate())
}
