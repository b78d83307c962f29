package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `backend:
  base_url: "http://solver:8080/"
  timeout: 3s
  dataset: "SMALL"
  breaker:
    enabled: true
    failure_threshold: 2
poll:
  interval: 500ms
  stop_when_not_solving: true
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "prometheus"
history:
  backend: "sqlite"
notify:
  broker: "tcp://localhost:1883"
  topic_prefix: "lab/"
sentry:
  environment: "test"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"backend.base_url", cfg.Backend.BaseURL, "http://solver:8080/"},
		{"backend.timeout", cfg.Backend.Timeout, 3 * time.Second},
		{"backend.dataset", cfg.Backend.Dataset, "SMALL"},
		{"backend.breaker.enabled", cfg.Backend.Breaker.Enabled, true},
		{"backend.breaker.failure_threshold", cfg.Backend.Breaker.FailureThreshold, uint32(2)},
		{"backend.breaker.open_timeout", cfg.Backend.Breaker.OpenTimeout, 30 * time.Second},
		{"poll.interval", cfg.Poll.Interval, 500 * time.Millisecond},
		{"poll.stop_when_not_solving", cfg.Poll.StopWhenNotSolving, true},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"history.backend", cfg.History.Backend, "sqlite"},
		{"history.path", cfg.History.Path, "beamtime-history.db"},
		{"notify.broker", cfg.Notify.Broker, "tcp://localhost:1883"},
		{"notify.topic_prefix", cfg.Notify.TopicPrefix, "lab"},
		{"notify.client_id", strings.HasPrefix(cfg.Notify.ClientID, "beamtime-"), true},
		{"sentry.environment", cfg.Sentry.Environment, "test"},
		{"sentry.enabled", cfg.Sentry.Enabled(), false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"backend":{"base_url":"https://solver.example"},"poll":{"interval":"1s"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://solver.example" || cfg.Poll.Interval != time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yaml", "backend:\n  base_url: \"http://file:8080\"\n")
	t.Setenv("BT_BACKEND__BASE_URL", "http://env:9090")
	t.Setenv("BT_POLL__INTERVAL", "250ms")
	t.Setenv("BT_POLL__STOP_WHEN_NOT_SOLVING", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env:9090" {
		t.Errorf("base_url not overridden: %s", cfg.Backend.BaseURL)
	}
	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Errorf("interval not overridden: %s", cfg.Poll.Interval)
	}
	if !cfg.Poll.StopWhenNotSolving {
		t.Errorf("stop_when_not_solving not overridden")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	def := Default()
	if cfg.Backend.BaseURL != def.Backend.BaseURL || cfg.Poll.Interval != def.Poll.Interval {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.History.Backend != "jsonl" || cfg.Notify.Enabled() {
		t.Fatalf("unexpected optional sections: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want string
	}{
		{"extension", "config.toml", "x = 1", "unsupported config format"},
		{"bad yaml", "config.yaml", "backend: [", "load"},
		{"scheme", "config.yaml", "backend:\n  base_url: \"ftp://x\"\n", "backend"},
		{"interval", "config.yaml", "poll:\n  interval: -1s\n", "poll"},
		{"history", "config.yaml", "history:\n  backend: \"mongo\"\n", "history"},
		{"wildcard", "config.yaml", "notify:\n  broker: \"tcp://b:1883\"\n  topic_prefix: \"a/#\"\n", "notify"},
		{"sample rate", "config.yaml", "sentry:\n  traces_sample_rate: 2\n", "sentry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.data))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
