// Package export writes the session placements of a timetable as JSON, CSV
// or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/beamtime/core/model"
)

// Placement is one exported session. Unassigned sessions have empty slot and
// beamline fields.
type Placement struct {
	SessionID    string `json:"session_id" yaml:"session_id"`
	Proposal     string `json:"proposal,omitempty" yaml:"proposal,omitempty"`
	SlotID       string `json:"slot_id,omitempty" yaml:"slot_id,omitempty"`
	Date         string `json:"date,omitempty" yaml:"date,omitempty"`
	Hour         int    `json:"hour,omitempty" yaml:"hour,omitempty"`
	BeamMode     string `json:"beam_mode,omitempty" yaml:"beam_mode,omitempty"`
	BeamlineID   string `json:"beamline_id,omitempty" yaml:"beamline_id,omitempty"`
	BeamlineName string `json:"beamline_name,omitempty" yaml:"beamline_name,omitempty"`
	Key          string `json:"key,omitempty" yaml:"key,omitempty"`
}

// Document is the JSON and YAML export layout.
type Document struct {
	Name       string      `json:"name" yaml:"name"`
	Score      string      `json:"score" yaml:"score"`
	Status     string      `json:"status,omitempty" yaml:"status,omitempty"`
	Placements []Placement `json:"placements" yaml:"placements"`
}

// Placements lists assigned sessions in slot then beamline order, followed by
// the unassigned ones in timetable order.
func Placements(t *model.Timetable) []Placement {
	cells := t.Placements()
	out := make([]Placement, 0, len(t.Sessions))
	for _, slot := range t.BeamtimeSlots {
		for _, line := range t.Beamlines {
			key := model.PlacementKey(slot.ID, line.ID)
			for _, s := range cells[key] {
				p := base(s)
				p.SlotID, p.Date, p.Hour = slot.ID, slot.Date, slot.Hour
				if slot.BeamMode != nil {
					p.BeamMode = slot.BeamMode.ID
				}
				p.BeamlineID, p.BeamlineName, p.Key = line.ID, line.Name, key
				out = append(out, p)
			}
		}
	}
	for _, s := range t.Unassigned() {
		out = append(out, base(s))
	}
	return out
}

func base(s model.Session) Placement {
	p := Placement{SessionID: s.ID}
	if s.Proposal != nil {
		p.Proposal = s.Proposal.FinalNumber
	}
	return p
}

func document(t *model.Timetable) Document {
	return Document{Name: t.Name, Score: t.ScoreLabel(), Status: string(t.SolverStatus), Placements: Placements(t)}
}

// WriteJSON writes the placements of t to w in JSON format.
func WriteJSON(w io.Writer, t *model.Timetable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document(t))
}

// WriteYAML writes the placements of t to w in YAML format.
func WriteYAML(w io.Writer, t *model.Timetable) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document(t)); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes one row per session to w.
func WriteCSV(w io.Writer, t *model.Timetable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"session_id", "proposal", "slot_id", "date", "hour", "beam_mode", "beamline_id", "beamline_name"}); err != nil {
		return err
	}
	for _, p := range Placements(t) {
		hour := ""
		if p.SlotID != "" {
			hour = strconv.Itoa(p.Hour)
		}
		rec := []string{p.SessionID, p.Proposal, p.SlotID, p.Date, hour, p.BeamMode, p.BeamlineID, p.BeamlineName}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Formats lists the names accepted by Write.
var Formats = []string{"json", "csv", "yaml"}

// Write exports t in the named format.
func Write(w io.Writer, format string, t *model.Timetable) error {
	switch format {
	case "json":
		return WriteJSON(w, t)
	case "csv":
		return WriteCSV(w, t)
	case "yaml", "yml":
		return WriteYAML(w, t)
	}
	return fmt.Errorf("unknown export format %q (known: %v)", format, Formats)
}
