// Package score decodes the multi-level textual scores reported by the
// solver, e.g. "-3hard/2medium/-40soft".
package score

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Level is a score level tag.
type Level string

const (
	Hard   Level = "hard"
	Medium Level = "medium"
	Soft   Level = "soft"
)

// Levels lists the recognized levels from highest to lowest priority.
var Levels = []Level{Hard, Medium, Soft}

// ErrInvalidScoreFormat is returned for empty or unparseable score strings.
var ErrInvalidScoreFormat = errors.New("invalid score format")

var componentPattern = regexp.MustCompile(`(-?[0-9]+)(hard|medium|soft)`)

// Components holds the value of every level. Levels absent from the source
// string are zero.
type Components struct {
	Hard   int64 `json:"hard"`
	Medium int64 `json:"medium"`
	Soft   int64 `json:"soft"`
}

// Parse extracts the level components from s. Every match of an optional
// minus sign, digits and a level tag sets that level; when a level appears
// more than once the last occurrence wins. A non-empty string without any
// match yields zero components.
func Parse(s string) (Components, error) {
	var c Components
	if s == "" {
		return c, fmt.Errorf("%w: empty score", ErrInvalidScoreFormat)
	}
	for _, m := range componentPattern.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Components{}, fmt.Errorf("%w: %q: %v", ErrInvalidScoreFormat, m[0], err)
		}
		c.set(Level(m[2]), v)
	}
	return c, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Components {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Components) set(l Level, v int64) {
	switch l {
	case Hard:
		c.Hard = v
	case Medium:
		c.Medium = v
	case Soft:
		c.Soft = v
	}
}

// Get returns the value of level l.
func (c Components) Get(l Level) int64 {
	switch l {
	case Hard:
		return c.Hard
	case Medium:
		return c.Medium
	case Soft:
		return c.Soft
	}
	return 0
}

// FirstNonZero returns the highest-priority level with a non-zero value and
// that value. When every level is zero it returns Soft and 0.
func (c Components) FirstNonZero() (Level, int64) {
	if c.Hard != 0 {
		return Hard, c.Hard
	}
	if c.Medium != 0 {
		return Medium, c.Medium
	}
	return Soft, c.Soft
}

// IsZero reports whether all levels are zero.
func (c Components) IsZero() bool {
	return c.Hard == 0 && c.Medium == 0 && c.Soft == 0
}

// String renders all three levels, e.g. "0hard/-2medium/5soft".
func (c Components) String() string {
	return fmt.Sprintf("%dhard/%dmedium/%dsoft", c.Hard, c.Medium, c.Soft)
}
