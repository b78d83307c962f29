package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/beamtime/core/model"
)

func sample() *model.Timetable {
	s0, s1, a, b := "2024-05-01/0", "2024-05-01/1", "A", "B"
	score := "0hard/-1medium/0soft"
	return &model.Timetable{
		Name:  "SMALL",
		Score: &score,
		BeamtimeSlots: []model.BeamtimeSlot{
			{ID: s0, Date: "2024-05-01", Hour: 0, BeamMode: &model.BeamMode{ID: "MB"}},
			{ID: s1, Date: "2024-05-01", Hour: 1},
		},
		Beamlines: []model.Beamline{{ID: "A", Name: "ID01"}, {ID: "B", Name: "ID02"}},
		Sessions: []model.Session{
			{ID: "late", SlotID: &s1, BeamlineID: &a},
			{ID: "free", Proposal: &model.Proposal{FinalNumber: "MX-1"}},
			{ID: "early", SlotID: &s0, BeamlineID: &b},
		},
	}
}

func TestPlacementsOrder(t *testing.T) {
	ps := Placements(sample())
	require.Len(t, ps, 3)
	assert.Equal(t, []string{"early", "late", "free"}, []string{ps[0].SessionID, ps[1].SessionID, ps[2].SessionID})
	assert.Equal(t, "MB", ps[0].BeamMode)
	assert.Equal(t, "ID02", ps[0].BeamlineName)
	assert.Equal(t, model.PlacementKey("2024-05-01/0", "B"), ps[0].Key)
	assert.Equal(t, Placement{SessionID: "free", Proposal: "MX-1"}, ps[2])
}

func TestWriteFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sample()))
	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "0hard/-1medium/0soft", doc.Score)
	assert.Len(t, doc.Placements, 3)

	buf.Reset()
	require.NoError(t, Write(&buf, "yaml", sample()))
	var ydoc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &ydoc))
	assert.Equal(t, doc, ydoc)

	buf.Reset()
	require.NoError(t, Write(&buf, "csv", sample()))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []string{"early", "", "2024-05-01/0", "2024-05-01", "0", "MB", "B", "ID02"}, recs[1])
	assert.Equal(t, []string{"free", "MX-1", "", "", "", "", "", ""}, recs[3])

	require.Error(t, Write(&buf, "xml", sample()))
}
