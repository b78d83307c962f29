package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kilianp07/beamtime/core/model"
)

const cellSep = "  "

// ScoreLine returns the score heading, "?" standing in for a missing score.
func ScoreLine(t *model.Timetable) string {
	return "Score: " + t.ScoreLabel()
}

// Schedule writes the timetable as a grid with one row per beamtime slot and
// one column per beamline, followed by the unassigned sessions.
func Schedule(w io.Writer, t *model.Timetable) error {
	status := dim("not solving")
	if t.SolverStatus.Active() {
		status = cyan("solving")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s\n\n", bold(t.Name), bold(ScoreLine(t)), status)

	cells := t.Placements()

	header := []string{"Shift"}
	for _, l := range t.Beamlines {
		name := l.Name
		if name == "" {
			name = l.ID
		}
		header = append(header, name)
	}
	rows := make([][]string, 0, len(t.BeamtimeSlots))
	for _, slot := range t.BeamtimeSlots {
		row := []string{slot.Label()}
		for _, l := range t.Beamlines {
			var labels []string
			for _, s := range cells[model.PlacementKey(slot.ID, l.ID)] {
				labels = append(labels, s.Label())
			}
			row = append(row, strings.Join(labels, ","))
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for _, r := range append([][]string{header}, rows...) {
		for i, c := range r {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	for i, h := range header {
		b.WriteString(bold(pad(h, widths[i])))
		b.WriteString(cellSep)
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(dim(pad(r[0], widths[0])))
		for i, c := range r[1:] {
			b.WriteString(cellSep)
			if c == "" {
				b.WriteString(dim(pad(".", widths[i+1])))
				continue
			}
			b.WriteString(proposalColor(c)(pad(c, widths[i+1])))
		}
		b.WriteString("\n")
	}

	unassigned := t.Unassigned()
	fmt.Fprintf(&b, "\n%s (%d)\n", bold("Unassigned sessions"), len(unassigned))
	for _, s := range unassigned {
		fmt.Fprintf(&b, "  %s\n", proposalColor(s.Label())(s.Label()))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
