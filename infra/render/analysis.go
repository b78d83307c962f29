package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/beamtime/core/analysis"
	"github.com/kilianp07/beamtime/core/session"
)

// NoScoreMessage is shown instead of an analysis while the score is missing
// or still initializing.
const NoScoreMessage = "No score to analyze yet, please first solve the timetable."

// Analysis writes a ranked analysis report as a table: indicator, name,
// level, match count, weight and the constraint's own score.
func Analysis(w io.Writer, rep *session.Report) error {
	var b strings.Builder
	if rep.Unavailable != nil {
		b.WriteString(yellow(NoScoreMessage))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%s %s\n\n", bold("Score analysis"), dim("("+rep.Score+")"))
	header := []string{"", "Constraint", "Type", "# Matches", "Weight", "Score"}
	rows := make([][]string, len(rep.Rows))
	for i, r := range rep.Rows {
		rows[i] = []string{
			"",
			r.Name,
			string(r.Type),
			strconv.Itoa(len(r.Matches)),
			strconv.FormatInt(r.NumericWeight, 10),
			strconv.FormatInt(r.ImplicitScore, 10),
		}
	}
	widths := make([]int, len(header))
	for _, r := range append([][]string{header}, rows...) {
		for i, c := range r {
			widths[i] = max(widths[i], len(c))
		}
	}
	widths[0] = 1

	for i, h := range header {
		b.WriteString(bold(pad(h, widths[i])))
		b.WriteString(cellSep)
	}
	b.WriteString("\n")
	for i, r := range rows {
		b.WriteString(indicator(rep.Rows[i].Indicator()))
		for j := 1; j < len(r); j++ {
			b.WriteString(cellSep)
			cell := pad(r[j], widths[j])
			if j == 3 {
				cell = bold(cell)
			}
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}
	s := rep.Summary
	fmt.Fprintf(&b, "\n%d constraints, %s, %s, %d matches\n",
		s.Constraints, boldRed(fmt.Sprintf("%d violated", s.Violated)), boldGreen(fmt.Sprintf("%d satisfied", s.Satisfied)), s.Matches)
	_, err := io.WriteString(w, b.String())
	return err
}

func indicator(i analysis.Indicator) string {
	switch i {
	case analysis.IndicatorViolated:
		return red("!")
	case analysis.IndicatorSatisfied:
		return green("✓")
	default:
		return " "
	}
}
