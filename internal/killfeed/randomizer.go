package killfeed

import (
	"math/rand"
	"regexp"
	"sync"
	"time"
)

// Synonyms replace the word "killed" when the randomizer is enabled. None of
// them contains "killed".
var Synonyms = []string{
	"slaughtered", "eliminated", "destroyed", "obliterated", "annihilated",
	"wrecked", "murdered", "executed", "dispatched", "terminated",
	"demolished", "erased", "deleted", "smoked", "dropped",
	"clapped", "bodied", "flattened", "silenced", "rekt",
}

var killedWord = regexp.MustCompile(`(?i)killed`)

// Randomizer swaps every occurrence of "killed", including ones glued to
// other characters, for an independently chosen synonym.
type Randomizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomizer(seed int64) *Randomizer {
	return &Randomizer{rnd: rand.New(rand.NewSource(seed))}
}

func NewTimeSeededRandomizer() *Randomizer {
	return NewRandomizer(time.Now().UnixNano())
}

// Apply runs on an already formatted message. A replacement can join the
// preceding text into a new "killed" ("kille" + "deleted"), so it repeats
// until none is left.
func (r *Randomizer) Apply(message string) string {
	for killedWord.MatchString(message) {
		message = killedWord.ReplaceAllStringFunc(message, func(string) string {
			r.mu.Lock()
			defer r.mu.Unlock()
			return Synonyms[r.rnd.Intn(len(Synonyms))]
		})
	}
	return message
}
