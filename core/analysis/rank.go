package analysis

import (
	"fmt"
	"slices"

	"github.com/kilianp07/beamtime/core/score"
)

// Compare orders two constraint scores so that the most damaging constraint
// comes first. It returns a negative value when a sorts before b.
//
// The hard-level sign check compares a's hard value against b's soft value
// on its second branch. This mirrors the established ordering of the
// analysis view and must not be made symmetric.
func Compare(a, b score.Components) int {
	if a.Hard < 0 && b.Hard > 0 {
		return -1
	}
	if a.Hard > 0 && b.Soft < 0 {
		return 1
	}
	if c := byMagnitude(a.Hard, b.Hard); c != 0 {
		return c
	}
	if a.Medium < 0 && b.Medium > 0 {
		return -1
	}
	if a.Medium > 0 && b.Medium < 0 {
		return 1
	}
	if c := byMagnitude(a.Medium, b.Medium); c != 0 {
		return c
	}
	if a.Soft < 0 && b.Soft > 0 {
		return -1
	}
	if a.Soft > 0 && b.Soft < 0 {
		return 1
	}
	return byMagnitude(a.Soft, b.Soft)
}

// byMagnitude puts the larger absolute value first.
func byMagnitude(a, b int64) int {
	a, b = abs(a), abs(b)
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Annotate fills Type and NumericWeight from the weight and ImplicitScore
// from the score. Each string picks its own highest non-zero level.
func Annotate(c *ConstraintAnalysis) error {
	w, err := score.Parse(c.Weight)
	if err != nil {
		return fmt.Errorf("constraint %q weight: %w", c.Name, err)
	}
	s, err := score.Parse(c.Score)
	if err != nil {
		return fmt.Errorf("constraint %q score: %w", c.Name, err)
	}
	c.Type, c.NumericWeight = w.FirstNonZero()
	_, c.ImplicitScore = s.FirstNonZero()
	return nil
}

// Rank returns an annotated copy of rows ordered with Compare. Rows with
// equal scores keep their relative order. rows is left untouched.
func Rank(rows []ConstraintAnalysis) ([]ConstraintAnalysis, error) {
	type ranked struct {
		row   ConstraintAnalysis
		score score.Components
	}
	items := make([]ranked, len(rows))
	for i, r := range rows {
		if err := Annotate(&r); err != nil {
			return nil, err
		}
		s, err := score.Parse(r.Score)
		if err != nil {
			return nil, err
		}
		items[i] = ranked{row: r, score: s}
	}
	slices.SortStableFunc(items, func(a, b ranked) int {
		return Compare(a.score, b.score)
	})
	out := make([]ConstraintAnalysis, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out, nil
}
