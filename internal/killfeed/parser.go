// Package killfeed turns raw kill-log lines into structured kill events and
// renders killfeed messages. It holds no state; persistence lives in the
// service layer.
package killfeed

import (
	"strings"
)

// ScientistName replaces purely numeric names, which the game logs for NPC scientists.
const ScientistName = "Scientist"

// Shape identifies which grammar rule matched a line.
type Shape string

const (
	ShapeReverse Shape = "reverse" // "<victim> was killed by <killer>"
	ShapeNormal  Shape = "normal"  // "<killer> killed <victim>"
)

// Event is a parsed and normalized kill line.
type Event struct {
	Killer string
	Victim string
	Shape  Shape
}

type rule struct {
	shape     Shape
	separator string
	// split returns (killer, victim) from the text around the separator.
	split func(before, after string) (string, string)
}

// grammar is tried strictly in order. The reverse form must come first:
// "<victim> was killed by <killer>" also contains " killed ", and trying the
// normal form first would read "<victim> was" as the killer.
var grammar = []rule{
	{
		shape:     ShapeReverse,
		separator: " was killed by ",
		split: func(before, after string) (string, string) {
			return stripTrailingClause(after), before
		},
	},
	{
		shape:     ShapeNormal,
		separator: " killed ",
		split: func(before, after string) (string, string) {
			return before, stripTrailingClause(after)
		},
	},
}

// trailingClauses start optional suffixes such as " with AK47" or " at 120m".
var trailingClauses = []string{" with ", " at "}

// Parse applies the ordered grammar. The second return is false when no rule
// matches or when either side is empty after normalization.
func Parse(line string) (Event, bool) {
	line = strings.ReplaceAll(line, "\x00", "")
	for _, r := range grammar {
		idx := strings.Index(line, r.separator)
		if idx < 0 {
			continue
		}
		killer, victim := r.split(line[:idx], line[idx+len(r.separator):])
		killer = NormalizeName(killer)
		victim = NormalizeName(victim)
		if killer == "" || victim == "" {
			return Event{}, false
		}
		return Event{Killer: killer, Victim: victim, Shape: r.shape}, true
	}
	return Event{}, false
}

// NormalizeName strips NUL bytes and surrounding whitespace and maps purely
// numeric spawn ids to ScientistName.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\x00", ""))
	if isNumeric(name) {
		return ScientistName
	}
	return name
}

func stripTrailingClause(s string) string {
	cut := len(s)
	for _, clause := range trailingClauses {
		if idx := strings.Index(s, clause); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return s[:cut]
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
