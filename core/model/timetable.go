package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/beamtime/core/score"
)

// ErrInvalidSnapshot is returned when a timetable breaks its structural
// invariants.
var ErrInvalidSnapshot = errors.New("invalid timetable snapshot")

// SolverStatus mirrors the solver's job status.
type SolverStatus string

const (
	NotSolving       SolverStatus = "NOT_SOLVING"
	SolvingScheduled SolverStatus = "SOLVING_SCHEDULED"
	SolvingActive    SolverStatus = "SOLVING_ACTIVE"
)

// Active reports whether the solver is working on the timetable. An empty
// status is treated as not solving.
func (s SolverStatus) Active() bool {
	return s != "" && s != NotSolving
}

// BeamMode is the operating mode of the accelerator during a slot.
type BeamMode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Beamline is a resource lane sessions are placed on.
type Beamline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BeamtimeSlot is a bookable time slot. IDs have the form "2024-05-01/2".
type BeamtimeSlot struct {
	ID       string    `json:"id"`
	Date     string    `json:"date,omitempty"`
	Hour     int       `json:"hour"`
	BeamMode *BeamMode `json:"beamMode,omitempty"`
}

// Label is the row heading used by renderers.
func (s BeamtimeSlot) Label() string {
	if s.BeamMode == nil || s.BeamMode.Name == "" {
		return s.ID
	}
	return s.ID + " - " + s.BeamMode.Name
}

// DatePreference is an acceptable or unacceptable date range of a proposal.
type DatePreference struct {
	Start       string `json:"start"`
	EndIncluded string `json:"endIncluded"`
	Acceptable  bool   `json:"acceptable"`
}

// Proposal is the experiment a session belongs to.
type Proposal struct {
	FinalNumber     string           `json:"finalNumber"`
	BeamMode        *BeamMode        `json:"beamMode,omitempty"`
	DatePreferences []DatePreference `json:"datePreferences,omitempty"`
}

// Session is an assignable unit of beamtime. SlotID and BeamlineID are both
// set or both nil.
type Session struct {
	ID           string          `json:"id"`
	Proposal     *Proposal       `json:"proposal,omitempty"`
	SlotID       *string         `json:"beamtimeSlot_id"`
	BeamlineID   *string         `json:"beamline_id"`
	LocalContact json.RawMessage `json:"localContact,omitempty"`
}

// Assigned reports whether the session is bound to a slot and a beamline.
func (s Session) Assigned() bool {
	return s.SlotID != nil && s.BeamlineID != nil
}

// Placement returns the placement key of an assigned session.
func (s Session) Placement() (string, bool) {
	if !s.Assigned() {
		return "", false
	}
	return PlacementKey(*s.SlotID, *s.BeamlineID), true
}

// Label is the card title used by renderers.
func (s Session) Label() string {
	if s.Proposal != nil && s.Proposal.FinalNumber != "" {
		return s.Proposal.FinalNumber
	}
	return s.ID
}

// Timetable is the solver's view of the problem at one point in time.
//
// A timetable decoded from JSON keeps the original document and encodes back
// to it unchanged, so fields this package does not model survive a round
// trip to the solver. Decoded timetables must be treated as read-only.
type Timetable struct {
	Name          string            `json:"name"`
	SolverStatus  SolverStatus      `json:"solverStatus,omitempty"`
	Score         *string           `json:"score"`
	BeamtimeSlots []BeamtimeSlot    `json:"beamtimeSlots"`
	Beamlines     []Beamline        `json:"beamlines"`
	Sessions      []Session         `json:"sessions"`
	LocalContacts []json.RawMessage `json:"localContacts,omitempty"`
	StaffMembers  []json.RawMessage `json:"staffMembers,omitempty"`

	raw json.RawMessage
}

type plainTimetable Timetable

// UnmarshalJSON decodes the timetable and retains the source document.
func (t *Timetable) UnmarshalJSON(b []byte) error {
	var p plainTimetable
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = Timetable(p)
	t.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON returns the retained source document when there is one.
func (t Timetable) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	return json.Marshal(plainTimetable(t))
}

// DecodeTimetable decodes and validates a timetable document.
func DecodeTimetable(data []byte) (*Timetable, error) {
	var t Timetable
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks id uniqueness and that every session binding is either
// complete and resolvable or entirely absent.
func (t *Timetable) Validate() error {
	slots := make(map[string]struct{}, len(t.BeamtimeSlots))
	for _, s := range t.BeamtimeSlots {
		if s.ID == "" {
			return fmt.Errorf("%w: beamtime slot without id", ErrInvalidSnapshot)
		}
		if _, dup := slots[s.ID]; dup {
			return fmt.Errorf("%w: duplicate beamtime slot %q", ErrInvalidSnapshot, s.ID)
		}
		slots[s.ID] = struct{}{}
	}
	lines := make(map[string]struct{}, len(t.Beamlines))
	for _, b := range t.Beamlines {
		if b.ID == "" {
			return fmt.Errorf("%w: beamline without id", ErrInvalidSnapshot)
		}
		if _, dup := lines[b.ID]; dup {
			return fmt.Errorf("%w: duplicate beamline %q", ErrInvalidSnapshot, b.ID)
		}
		lines[b.ID] = struct{}{}
	}
	for _, s := range t.Sessions {
		if (s.SlotID == nil) != (s.BeamlineID == nil) {
			return fmt.Errorf("%w: session %q is partially assigned", ErrInvalidSnapshot, s.ID)
		}
		if !s.Assigned() {
			continue
		}
		if _, ok := slots[*s.SlotID]; !ok {
			return fmt.Errorf("%w: session %q references unknown slot %q", ErrInvalidSnapshot, s.ID, *s.SlotID)
		}
		if _, ok := lines[*s.BeamlineID]; !ok {
			return fmt.Errorf("%w: session %q references unknown beamline %q", ErrInvalidSnapshot, s.ID, *s.BeamlineID)
		}
	}
	return nil
}

// ScorePending reports whether there is no usable score yet: either none was
// computed or the solution is still being initialized.
func (t *Timetable) ScorePending() bool {
	return t.Score == nil || strings.Contains(*t.Score, "init")
}

// ScoreLabel returns the score text, or "?" when there is none.
func (t *Timetable) ScoreLabel() string {
	if t.Score == nil {
		return "?"
	}
	return *t.Score
}

// ScoreComponents parses the timetable score.
func (t *Timetable) ScoreComponents() (score.Components, error) {
	if t.Score == nil {
		return score.Components{}, fmt.Errorf("%w: no score", score.ErrInvalidScoreFormat)
	}
	return score.Parse(*t.Score)
}

// Assigned returns the sessions bound to a slot and beamline.
func (t *Timetable) Assigned() []Session {
	var out []Session
	for _, s := range t.Sessions {
		if s.Assigned() {
			out = append(out, s)
		}
	}
	return out
}

// Unassigned returns the sessions without a binding.
func (t *Timetable) Unassigned() []Session {
	var out []Session
	for _, s := range t.Sessions {
		if !s.Assigned() {
			out = append(out, s)
		}
	}
	return out
}

// Placements groups assigned sessions by placement key.
func (t *Timetable) Placements() map[string][]Session {
	out := make(map[string][]Session)
	for _, s := range t.Sessions {
		if key, ok := s.Placement(); ok {
			out[key] = append(out[key], s)
		}
	}
	return out
}

// Clone returns a copy that can be modified. Slices and session bindings are
// copied; the clone no longer carries the source document and encodes from
// its fields.
func (t *Timetable) Clone() *Timetable {
	cp := *t
	cp.raw = nil
	if t.Score != nil {
		s := *t.Score
		cp.Score = &s
	}
	cp.BeamtimeSlots = append([]BeamtimeSlot(nil), t.BeamtimeSlots...)
	cp.Beamlines = append([]Beamline(nil), t.Beamlines...)
	cp.LocalContacts = append([]json.RawMessage(nil), t.LocalContacts...)
	cp.StaffMembers = append([]json.RawMessage(nil), t.StaffMembers...)
	cp.Sessions = make([]Session, len(t.Sessions))
	for i, s := range t.Sessions {
		if s.SlotID != nil {
			v := *s.SlotID
			s.SlotID = &v
		}
		if s.BeamlineID != nil {
			v := *s.BeamlineID
			s.BeamlineID = &v
		}
		cp.Sessions[i] = s
	}
	return &cp
}

// Slot returns the slot with the given id.
func (t *Timetable) Slot(id string) (BeamtimeSlot, bool) {
	for _, s := range t.BeamtimeSlots {
		if s.ID == id {
			return s, true
		}
	}
	return BeamtimeSlot{}, false
}
