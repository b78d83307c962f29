// Package render draws timetables and score analyses for the terminal and
// writes score charts as HTML.
package render

import "github.com/fatih/color"

var (
	bold      = color.New(color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
	cyan      = color.New(color.FgCyan).SprintFunc()
	green     = color.New(color.FgGreen).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	boldRed   = color.New(color.Bold, color.FgRed).SprintFunc()
	boldGreen = color.New(color.Bold, color.FgGreen).SprintFunc()
)

// sessionColors is the palette sessions are tinted with, keyed by proposal.
var sessionColors = []func(a ...interface{}) string{
	color.New(color.FgMagenta).SprintFunc(),
	color.New(color.FgCyan).SprintFunc(),
	color.New(color.FgYellow).SprintFunc(),
	color.New(color.FgGreen).SprintFunc(),
	color.New(color.FgHiBlue).SprintFunc(),
	color.New(color.FgHiRed).SprintFunc(),
}

// proposalColor hashes a proposal number to a palette entry so one proposal
// keeps its color across renders.
func proposalColor(key string) func(a ...interface{}) string {
	var h uint32
	for _, c := range key {
		h = h*31 + uint32(c)
	}
	return sessionColors[h%uint32(len(sessionColors))]
}

// SetColor forces colored output on or off. By default color follows the
// terminal.
func SetColor(enabled bool) { color.NoColor = !enabled }
