package killfeed

import (
	"strings"
	"unicode"
)

// VictimKind is the classification of a kill's victim.
type VictimKind int

const (
	VictimUnlinked VictimKind = iota // a human name with no active link on the server
	VictimPlayer                     // a tracked player
	VictimNPC                        // scientist, NPC or animal
)

func (k VictimKind) String() string {
	switch k {
	case VictimPlayer:
		return "player"
	case VictimNPC:
		return "npc"
	default:
		return "unlinked"
	}
}

var npcKeywords = map[string]bool{
	"npc": true, "bandit": true, "bradley": true, "heli": true, "helicopter": true,
	"turret": true, "bear": true, "wolf": true, "boar": true, "chicken": true,
	"deer": true, "horse": true, "shark": true, "dolphin": true, "whale": true,
	"stag": true, "rabbit": true, "pig": true, "cow": true, "sheep": true, "goat": true,
}

var npcPhrases = []string{"arctic wolf", "polar bear"}

// IsNPCName reports whether a name denotes a scientist, NPC or animal. Keywords
// match whole words, so "a wandering bear" is an NPC but "Bearded" is not.
func IsNPCName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == strings.ToLower(ScientistName) {
		return true
	}
	for _, phrase := range npcPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if npcKeywords[w] {
			return true
		}
	}
	return false
}

// Classify picks exactly one kind. A roster match wins over the NPC keyword
// check so a player actually named "Wolf" is still tracked.
func Classify(victim string, tracked bool) VictimKind {
	switch {
	case tracked:
		return VictimPlayer
	case IsNPCName(victim):
		return VictimNPC
	default:
		return VictimUnlinked
	}
}
