// Package escalate holds the model-strength tier policy: when a run
// keeps failing, the control loop promotes to the next stronger agent
// that is actually usable. Promotion is monotonic within a run.
package escalate

// tiers orders agents weakest to strongest. Escalation only ever moves
// rightward through this list.
var tiers = []string{
	"claude-haiku",
	"antigravity-flash",
	"gemini",
	"claude-sonnet",
	"antigravity-pro",
	"claude-opus",
}

// Tiers returns the escalation order, weakest to strongest.
func Tiers() []string {
	out := make([]string, len(tiers))
	copy(out, tiers)
	return out
}

// Rank returns the agent's position in the tier list, or -1 when the
// agent is not a tier member. An unranked agent escalates to the
// weakest available tier member.
func Rank(agent string) int {
	for i, t := range tiers {
		if t == agent {
			return i
		}
	}
	return -1
}

// Next returns the weakest tier member that is both stronger than
// current and accepted by usable. The second return is false when no
// such agent exists, in which case the caller stays on current.
func Next(current string, usable func(name string) bool) (string, bool) {
	if usable == nil {
		return "", false
	}
	for _, candidate := range tiers[Rank(current)+1:] {
		if usable(candidate) {
			return candidate, true
		}
	}
	return "", false
}
