// Package analysis ranks and annotates the per-constraint score breakdown
// returned by the solver's analyze endpoint.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/beamtime/core/score"
)

// ErrInvalidResult is returned when an analysis payload breaks its contract.
var ErrInvalidResult = errors.New("invalid analysis result")

// Match is a single constraint match. The justification is kept verbatim.
type Match struct {
	Score         string          `json:"score"`
	Justification json.RawMessage `json:"justification,omitempty"`
}

// ConstraintAnalysis is one evaluated constraint. Type, NumericWeight and
// ImplicitScore are derived by Annotate and are not part of the wire format
// sent by the solver.
type ConstraintAnalysis struct {
	Package string  `json:"package,omitempty"`
	Name    string  `json:"name"`
	Weight  string  `json:"weight"`
	Score   string  `json:"score"`
	Matches []Match `json:"matches"`

	Type          score.Level `json:"type,omitempty"`
	NumericWeight int64       `json:"numericWeight"`
	ImplicitScore int64       `json:"implicitScore"`
}

// Result is the analyze endpoint response.
type Result struct {
	Score       string               `json:"score"`
	Constraints []ConstraintAnalysis `json:"constraints"`
}

// Validate checks that every constraint is named, unique within its package
// and carries both a weight and a score.
func (r Result) Validate() error {
	seen := make(map[string]struct{}, len(r.Constraints))
	for i, c := range r.Constraints {
		if c.Name == "" {
			return fmt.Errorf("%w: constraint %d has no name", ErrInvalidResult, i)
		}
		id := c.Package + "/" + c.Name
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate constraint %q", ErrInvalidResult, id)
		}
		seen[id] = struct{}{}
		if c.Weight == "" || c.Score == "" {
			return fmt.Errorf("%w: constraint %q lacks weight or score", ErrInvalidResult, c.Name)
		}
	}
	return nil
}

// Indicator is the marker a renderer shows next to a constraint row.
type Indicator int

const (
	IndicatorNone Indicator = iota
	// IndicatorViolated marks a hard constraint with a negative contribution.
	IndicatorViolated
	// IndicatorSatisfied marks a penalty constraint without any match.
	IndicatorSatisfied
)

func (i Indicator) String() string {
	switch i {
	case IndicatorViolated:
		return "violated"
	case IndicatorSatisfied:
		return "satisfied"
	default:
		return "none"
	}
}

// Indicator returns the row marker. Rows must be annotated first.
func (c ConstraintAnalysis) Indicator() Indicator {
	if c.Type == score.Hard && c.ImplicitScore < 0 {
		return IndicatorViolated
	}
	if c.NumericWeight < 0 && len(c.Matches) == 0 {
		return IndicatorSatisfied
	}
	return IndicatorNone
}

// Summary aggregates a ranked analysis.
type Summary struct {
	Constraints int
	Violated    int
	Satisfied   int
	Matches     int
}

// Summarize counts indicators and matches over annotated rows.
func Summarize(rows []ConstraintAnalysis) Summary {
	s := Summary{Constraints: len(rows)}
	for _, r := range rows {
		s.Matches += len(r.Matches)
		switch r.Indicator() {
		case IndicatorViolated:
			s.Violated++
		case IndicatorSatisfied:
			s.Satisfied++
		}
	}
	return s
}
