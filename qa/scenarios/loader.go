// Package scenarios runs YAML-described solve sessions against the fake
// backend and checks their outcome.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/beamtime/core/events"
	"github.com/kilianp07/beamtime/internal/mockserver"
)

type DatasetDef struct {
	Days      int `yaml:"days"`
	Hours     int `yaml:"hours"`
	Beamlines int `yaml:"beamlines"`
	Sessions  int `yaml:"sessions"`
}

func (d DatasetDef) ToSpec() mockserver.DatasetSpec {
	return mockserver.DatasetSpec{Days: d.Days, Hours: d.Hours, Beamlines: d.Beamlines, Sessions: d.Sessions}
}

// FailureDef injects an HTTP status on a backend operation once AfterPolls
// snapshots have been applied.
type FailureDef struct {
	Op         string `yaml:"op"`
	Status     int    `yaml:"status"`
	AfterPolls int    `yaml:"after_polls"`
}

type Expected struct {
	FinalState events.State `yaml:"final_state"`
	Unassigned *int         `yaml:"unassigned,omitempty"`
	Failures   int          `yaml:"failures"`
	MinPolls   int          `yaml:"min_polls"`
	Stopped    bool         `yaml:"stopped"`
	Analysis   bool         `yaml:"analysis"`
}

type Scenario struct {
	Name               string        `yaml:"name"`
	Description        string        `yaml:"description,omitempty"`
	Dataset            DatasetDef    `yaml:"dataset"`
	Interval           time.Duration `yaml:"interval"`
	StopWhenNotSolving bool          `yaml:"stop_when_not_solving"`
	StopAfterPolls     int           `yaml:"stop_after_polls,omitempty"`
	Failures           []FailureDef  `yaml:"failures,omitempty"`
	Expected           Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if sc.Dataset.Sessions <= 0 {
		return nil, fmt.Errorf("%s: dataset needs at least one session", path)
	}
	if sc.Interval <= 0 {
		sc.Interval = 5 * time.Millisecond
	}
	return &sc, nil
}
