package killfeed

import (
	"fmt"
	"strconv"
	"strings"
)

// StatsView is the read-side view of a player's stats used for formatting.
// The zero value plus KDRatio "0" is the neutral default for unknown names.
type StatsView struct {
	Kills         int64  `json:"kills"`
	Deaths        int64  `json:"deaths"`
	KillStreak    int64  `json:"kill_streak"`
	HighestStreak int64  `json:"highest_streak"`
	KDRatio       string `json:"kd_ratio"`
}

// NeutralStats is returned for unresolved names and scientists.
func NeutralStats() StatsView {
	return StatsView{KDRatio: "0"}
}

// KDRatio: no deaths gives the kill count as an integer string, otherwise
// kills/deaths with two decimals.
func KDRatio(kills, deaths int64) string {
	if deaths == 0 {
		return strconv.FormatInt(kills, 10)
	}
	return fmt.Sprintf("%.2f", float64(kills)/float64(deaths))
}

// Side is one participant as rendered into a template.
type Side struct {
	Name     string
	Stats    StatsView
	ClanName string
}

// Render substitutes the template tokens.
func Render(template string, killer, victim Side) string {
	r := strings.NewReplacer(
		"{Killer}", killer.Name,
		"{Victim}", victim.Name,
		"{KillerKD}", killer.Stats.KDRatio,
		"{VictimKD}", victim.Stats.KDRatio,
		"{KillerStreak}", strconv.FormatInt(killer.Stats.KillStreak, 10),
		"{VictimStreak}", strconv.FormatInt(victim.Stats.KillStreak, 10),
		"{KillerHighest}", strconv.FormatInt(killer.Stats.HighestStreak, 10),
		"{VictimHighest}", strconv.FormatInt(victim.Stats.HighestStreak, 10),
		"{KillerClanName}", killer.ClanName,
		"{VictimClanName}", victim.ClanName,
	)
	return r.Replace(template)
}
