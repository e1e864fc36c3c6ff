package escalate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usableSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestTiersOrderedWeakestToStrongest(t *testing.T) {
	want := []string{
		"claude-haiku",
		"antigravity-flash",
		"gemini",
		"claude-sonnet",
		"antigravity-pro",
		"claude-opus",
	}
	assert.Equal(t, want, Tiers())
}

func TestTiersReturnsCopy(t *testing.T) {
	got := Tiers()
	got[0] = "mutated"
	assert.Equal(t, "claude-haiku", Tiers()[0])
}

func TestRank(t *testing.T) {
	assert.Equal(t, 0, Rank("claude-haiku"))
	assert.Equal(t, 3, Rank("claude-sonnet"))
	assert.Equal(t, 5, Rank("claude-opus"))
	assert.Equal(t, -1, Rank("copilot"))
}

func TestNextPromotesToNextAvailableTier(t *testing.T) {
	next, ok := Next("claude-sonnet", usableSet("claude-sonnet", "antigravity-pro", "claude-opus"))
	require.True(t, ok)
	assert.Equal(t, "antigravity-pro", next)
}

func TestNextSkipsUnusableTiers(t *testing.T) {
	next, ok := Next("claude-sonnet", usableSet("claude-sonnet", "claude-opus"))
	require.True(t, ok)
	assert.Equal(t, "claude-opus", next)
}

func TestNextNoStrongerUsableAgent(t *testing.T) {
	_, ok := Next("claude-opus", usableSet("claude-haiku", "claude-sonnet", "claude-opus"))
	assert.False(t, ok)
}

func TestNextUnrankedAgentStartsAtWeakestTier(t *testing.T) {
	next, ok := Next("copilot", usableSet("gemini", "claude-opus"))
	require.True(t, ok)
	assert.Equal(t, "gemini", next)
}

func TestNextNilPredicate(t *testing.T) {
	_, ok := Next("claude-haiku", nil)
	assert.False(t, ok)
}

func TestNextIsMonotonic(t *testing.T) {
	usable := usableSet(Tiers()...)

	current := "claude-haiku"
	for {
		next, ok := Next(current, usable)
		if !ok {
			break
		}
		assert.Greater(t, Rank(next), Rank(current),
			"escalation never selects an earlier tier")
		current = next
	}
	assert.Equal(t, "claude-opus", current)
}
