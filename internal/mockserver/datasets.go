package mockserver

import (
	"fmt"
	"time"

	"github.com/kilianp07/beamtime/core/model"
)

// DatasetSpec sizes a generated demo dataset.
type DatasetSpec struct {
	Days      int
	Hours     int
	Beamlines int
	Sessions  int
}

var modes = []model.BeamMode{
	{ID: "MB", Name: "Multibunch"},
	{ID: "SB", Name: "Single bunch"},
}

// GenerateDataset builds a deterministic unsolved timetable. Slot ids have
// the form "2024-05-01/3" and every session starts unassigned.
func GenerateDataset(name string, spec DatasetSpec) *model.Timetable {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t := &model.Timetable{Name: name, SolverStatus: model.NotSolving}
	for d := 0; d < spec.Days; d++ {
		date := start.AddDate(0, 0, d).Format(time.DateOnly)
		for h := 0; h < spec.Hours; h++ {
			mode := modes[(d+h)%len(modes)]
			t.BeamtimeSlots = append(t.BeamtimeSlots, model.BeamtimeSlot{
				ID:       fmt.Sprintf("%s/%d", date, h),
				Date:     date,
				Hour:     h,
				BeamMode: &mode,
			})
		}
	}
	for b := 0; b < spec.Beamlines; b++ {
		t.Beamlines = append(t.Beamlines, model.Beamline{
			ID:   fmt.Sprintf("ID%02d", b+1),
			Name: fmt.Sprintf("Beamline %d", b+1),
		})
	}
	for s := 0; s < spec.Sessions; s++ {
		mode := modes[s%len(modes)]
		p := &model.Proposal{FinalNumber: fmt.Sprintf("MX-%04d", 1000+s), BeamMode: &mode}
		if s%3 == 0 {
			day := start.AddDate(0, 0, s%max(spec.Days, 1)).Format(time.DateOnly)
			p.DatePreferences = []model.DatePreference{{Start: day, EndIncluded: day, Acceptable: false}}
		}
		t.Sessions = append(t.Sessions, model.Session{ID: fmt.Sprintf("session-%d", s+1), Proposal: p})
	}
	return t
}

// DefaultDatasets returns the datasets served when none are configured.
func DefaultDatasets() map[string]*model.Timetable {
	return map[string]*model.Timetable{
		"SMALL": GenerateDataset("SMALL", DatasetSpec{Days: 2, Hours: 3, Beamlines: 2, Sessions: 8}),
		"LARGE": GenerateDataset("LARGE", DatasetSpec{Days: 5, Hours: 4, Beamlines: 4, Sessions: 60}),
	}
}
