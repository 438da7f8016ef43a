package killfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNPCName(t *testing.T) {
	npc := []string{"Scientist", "scientist", "a wandering bear", "Wolf", "Bradley APC", "Patrol Heli",
		"an arctic wolf", "Polar Bear", "chicken", "Bandit Guard", "NPC"}
	for _, name := range npc {
		assert.True(t, IsNPCName(name), name)
	}

	human := []string{"Alice", "Bearded", "Wolfgang", "Pigeon", "Chickenlittle", ""}
	for _, name := range human {
		assert.False(t, IsNPCName(name), name)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, VictimPlayer, Classify("Bob", true))
	// 玩家名与关键词重合时以绑定为准
	assert.Equal(t, VictimPlayer, Classify("Wolf", true))
	assert.Equal(t, VictimNPC, Classify("Scientist", false))
	assert.Equal(t, VictimNPC, Classify("a wandering bear", false))
	assert.Equal(t, VictimUnlinked, Classify("Stranger", false))
}
