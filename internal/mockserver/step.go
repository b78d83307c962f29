package mockserver

import "github.com/kilianp07/beamtime/core/model"

// step places the first unassigned session on a free cell and rescores the
// timetable. Cells whose beam mode and date suit the proposal are preferred.
// It reports false when nothing could be placed.
func step(t *model.Timetable) (*model.Timetable, bool) {
	t = t.Clone()
	idx := -1
	for i, s := range t.Sessions {
		if !s.Assigned() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return t, false
	}
	taken := t.Placements()
	sess := &t.Sessions[idx]

	var fallback *[2]string
	for _, slot := range t.BeamtimeSlots {
		for _, line := range t.Beamlines {
			if len(taken[model.PlacementKey(slot.ID, line.ID)]) > 0 {
				continue
			}
			cell := [2]string{slot.ID, line.ID}
			if suits(sess.Proposal, slot) {
				bind(sess, cell)
				rescore(t)
				return t, true
			}
			if fallback == nil {
				fallback = &cell
			}
		}
	}
	if fallback == nil {
		return t, false
	}
	bind(sess, *fallback)
	rescore(t)
	return t, true
}

func suits(p *model.Proposal, slot model.BeamtimeSlot) bool {
	if p == nil {
		return true
	}
	if p.BeamMode != nil && slot.BeamMode != nil && p.BeamMode.ID != slot.BeamMode.ID {
		return false
	}
	for _, d := range p.DatePreferences {
		if !d.Acceptable && slot.Date >= d.Start && slot.Date <= d.EndIncluded {
			return false
		}
	}
	return true
}

func bind(s *model.Session, cell [2]string) {
	slot, line := cell[0], cell[1]
	s.SlotID, s.BeamlineID = &slot, &line
}

func rescore(t *model.Timetable) {
	sc := evaluate(t).Score
	t.Score = &sc
}
