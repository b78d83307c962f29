package mockserver

import (
	"encoding/json"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/model"
	"github.com/kilianp07/beamtime/core/score"
)

const constraintPackage = "beamtime.scheduling"

// evaluate scores t with a few fixed constraints and returns their breakdown
// in declaration order.
func evaluate(t *model.Timetable) analysis.Result {
	var conflict, mismatch, unassigned, dates []analysis.Match

	occupied := map[string][]string{}
	for _, s := range t.Sessions {
		key, ok := s.Placement()
		if !ok {
			unassigned = append(unassigned, match("-1medium", s.ID))
			continue
		}
		for _, other := range occupied[key] {
			conflict = append(conflict, match("-1hard", other, s.ID))
		}
		occupied[key] = append(occupied[key], s.ID)

		slot, _ := t.Slot(*s.SlotID)
		if s.Proposal == nil {
			continue
		}
		if s.Proposal.BeamMode != nil && slot.BeamMode != nil && s.Proposal.BeamMode.ID != slot.BeamMode.ID {
			mismatch = append(mismatch, match("-1hard", s.ID))
		}
		for _, p := range s.Proposal.DatePreferences {
			if !p.Acceptable && slot.Date >= p.Start && slot.Date <= p.EndIncluded {
				dates = append(dates, match("-1soft", s.ID))
			}
		}
	}

	rows := []analysis.ConstraintAnalysis{
		row("Beamline conflict", "-1hard", score.Hard, conflict),
		row("Beam mode mismatch", "-1hard", score.Hard, mismatch),
		row("Unassigned session", "-1medium", score.Medium, unassigned),
		row("Unacceptable date", "-1soft", score.Soft, dates),
	}
	total := score.Components{
		Hard:   -int64(len(conflict) + len(mismatch)),
		Medium: -int64(len(unassigned)),
		Soft:   -int64(len(dates)),
	}
	return analysis.Result{Score: total.String(), Constraints: rows}
}

func row(name, weight string, level score.Level, matches []analysis.Match) analysis.ConstraintAnalysis {
	var c score.Components
	switch level {
	case score.Hard:
		c.Hard = -int64(len(matches))
	case score.Medium:
		c.Medium = -int64(len(matches))
	default:
		c.Soft = -int64(len(matches))
	}
	if matches == nil {
		matches = []analysis.Match{}
	}
	return analysis.ConstraintAnalysis{
		Package: constraintPackage,
		Name:    name,
		Weight:  weight,
		Score:   c.String(),
		Matches: matches,
	}
}

func match(sc string, sessions ...string) analysis.Match {
	j, _ := json.Marshal(map[string][]string{"sessions": sessions})
	return analysis.Match{Score: sc, Justification: j}
}
