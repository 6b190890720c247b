package model

// LeakCategory classifies a recurring decision error.
type LeakCategory string

const (
	// LeakPassivePlay: chose a weaker action when a stronger one was correct.
	LeakPassivePlay LeakCategory = "PASSIVE_PLAY"
	// LeakOverFolding: folded when continuing was correct.
	LeakOverFolding LeakCategory = "OVER_FOLDING"
	// LeakCallingStation: continued when folding was correct.
	LeakCallingStation LeakCategory = "CALLING_STATION"
	// LeakOverAggression: escalated when restraint was correct.
	LeakOverAggression LeakCategory = "OVER_AGGRESSION"
)

// LeakCategories lists all categories.
func LeakCategories() []LeakCategory {
	return []LeakCategory{LeakPassivePlay, LeakOverFolding, LeakCallingStation, LeakOverAggression}
}
