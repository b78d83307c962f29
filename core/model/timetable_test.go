package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTimetable = `{
  "name": "Spring run",
  "solverStatus": "NOT_SOLVING",
  "score": "-2hard/0medium/-15soft",
  "beamtimeSlots": [
    {"id": "2024-05-01/0", "date": "2024-05-01", "hour": 0, "beamMode": {"id": "m1", "name": "Multibunch"}},
    {"id": "2024-05-01/1", "date": "2024-05-01", "hour": 1}
  ],
  "beamlines": [{"id": "ID01", "name": "Nano"}, {"id": "BM02", "name": "Bending"}],
  "localContacts": [{"id": "lc1", "name": "Ann"}],
  "sessions": [
    {"id": "s1", "proposal": {"finalNumber": "MX-1"}, "beamtimeSlot_id": "2024-05-01/0", "beamline_id": "ID01"},
    {"id": "s2", "proposal": {"finalNumber": "MX-2"}, "beamtimeSlot_id": null, "beamline_id": null, "extra": 7}
  ],
  "vendorField": {"kept": true}
}`

func TestDecodeTimetable(t *testing.T) {
	tt, err := DecodeTimetable([]byte(sampleTimetable))
	require.NoError(t, err)

	assert.Equal(t, "Spring run", tt.Name)
	assert.False(t, tt.SolverStatus.Active())
	assert.Len(t, tt.Assigned(), 1)
	assert.Len(t, tt.Unassigned(), 1)
	assert.Equal(t, "2024-05-01/0 - Multibunch", tt.BeamtimeSlots[0].Label())
	assert.Equal(t, "2024-05-01/1", tt.BeamtimeSlots[1].Label())

	c, err := tt.ScoreComponents()
	require.NoError(t, err)
	assert.Equal(t, int64(-2), c.Hard)
	assert.Equal(t, int64(-15), c.Soft)
}

func TestTimetableRoundTripKeepsUnknownFields(t *testing.T) {
	tt, err := DecodeTimetable([]byte(sampleTimetable))
	require.NoError(t, err)

	out, err := json.Marshal(tt)
	require.NoError(t, err)
	assert.JSONEq(t, sampleTimetable, string(out))
}

func TestTimetableMarshalWithoutSource(t *testing.T) {
	slot, line := "2024-05-01/0", "ID01"
	tt := Timetable{
		Name:          "built",
		BeamtimeSlots: []BeamtimeSlot{{ID: slot}},
		Beamlines:     []Beamline{{ID: line}},
		Sessions:      []Session{{ID: "s1", SlotID: &slot, BeamlineID: &line}},
	}
	out, err := json.Marshal(tt)
	require.NoError(t, err)

	back, err := DecodeTimetable(out)
	require.NoError(t, err)
	assert.Equal(t, "built", back.Name)
	assert.Len(t, back.Assigned(), 1)
}

func TestValidateRejectsBrokenSnapshots(t *testing.T) {
	cases := map[string]string{
		"partial binding":  `{"beamtimeSlots":[{"id":"a"}],"beamlines":[{"id":"b"}],"sessions":[{"id":"s","beamtimeSlot_id":"a","beamline_id":null}]}`,
		"unknown slot":     `{"beamtimeSlots":[{"id":"a"}],"beamlines":[{"id":"b"}],"sessions":[{"id":"s","beamtimeSlot_id":"x","beamline_id":"b"}]}`,
		"unknown beamline": `{"beamtimeSlots":[{"id":"a"}],"beamlines":[{"id":"b"}],"sessions":[{"id":"s","beamtimeSlot_id":"a","beamline_id":"x"}]}`,
		"duplicate slot":   `{"beamtimeSlots":[{"id":"a"},{"id":"a"}],"beamlines":[],"sessions":[]}`,
		"duplicate line":   `{"beamtimeSlots":[],"beamlines":[{"id":"b"},{"id":"b"}],"sessions":[]}`,
		"not json":         `{"beamtimeSlots":`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTimetable([]byte(doc))
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

func TestScorePending(t *testing.T) {
	pending := func(s *string) bool { return (&Timetable{Score: s}).ScorePending() }
	str := func(s string) *string { return &s }

	if !pending(nil) {
		t.Fatal("nil score should be pending")
	}
	if !pending(str("-3init/0hard/0medium/0soft")) {
		t.Fatal("init score should be pending")
	}
	if pending(str("0hard/0medium/-1soft")) {
		t.Fatal("initialized score should not be pending")
	}
	if got := (&Timetable{}).ScoreLabel(); got != "?" {
		t.Fatalf("expected ? got %q", got)
	}
}

func TestPlacementsGroupByKey(t *testing.T) {
	tt, err := DecodeTimetable([]byte(sampleTimetable))
	require.NoError(t, err)

	cells := tt.Placements()
	require.Len(t, cells, 1)
	got := cells[PlacementKey("2024-05-01/0", "ID01")]
	require.Len(t, got, 1)
	assert.Equal(t, "MX-1", got[0].Label())
}

func TestCloneIsIndependent(t *testing.T) {
	tt, err := DecodeTimetable([]byte(sampleTimetable))
	require.NoError(t, err)

	cp := tt.Clone()
	slot, line := "2024-05-01/1", "BM02"
	cp.Sessions[1].SlotID, cp.Sessions[1].BeamlineID = &slot, &line
	*cp.Sessions[0].SlotID = "2024-05-01/1"
	cp.Name = "edited"

	assert.Len(t, tt.Unassigned(), 1)
	assert.Equal(t, "2024-05-01/0", *tt.Sessions[0].SlotID)
	require.NoError(t, cp.Validate())

	out, err := json.Marshal(cp)
	require.NoError(t, err)
	back, err := DecodeTimetable(out)
	require.NoError(t, err)
	assert.Equal(t, "edited", back.Name)
	assert.Empty(t, back.Unassigned())

	s, ok := back.Slot("2024-05-01/0")
	require.True(t, ok)
	assert.Equal(t, "Multibunch", s.BeamMode.Name)
	_, ok = back.Slot("nope")
	assert.False(t, ok)
}
