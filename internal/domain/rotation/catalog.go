package rotation

// DefaultCatalog is the built-in fallback used when no catalog is available.
func DefaultCatalog() []Item {
	return []Item{
		{ID: "mtt_01", Name: "Nash Push/Fold", Category: "MTT", Focus: "Short Stack", Difficulty: 1, Leaks: []string{"OVER_FOLDING"}},
		{ID: "mtt_02", Name: "ICM Pressure", Category: "MTT", Focus: "Bubble Play", Difficulty: 2, Leaks: []string{"OVER_AGGRESSION", "CALLING_STATION"}},
		{ID: "cash_01", Name: "6-Max Blueprint", Category: "CASH", Focus: "GTO Ranges", Difficulty: 1, Leaks: []string{"PASSIVE_PLAY"}},
		{ID: "cash_02", Name: "Rake-Proof Defense", Category: "CASH", Focus: "High Rake Adj", Difficulty: 2, Leaks: []string{"OVER_FOLDING"}},
		{ID: "spin_01", Name: "Hyper Opener", Category: "SPINS", Focus: "25BB 3-Max", Difficulty: 2, Leaks: []string{"PASSIVE_PLAY"}},
		{ID: "psy_01", Name: "The Metronome", Category: "PSYCHOLOGY", Focus: "Timing", Difficulty: 2},
		{ID: "adv_01", Name: "Aggro Vampire", Category: "ADVANCED", Focus: "Redline", Difficulty: 4, Leaks: []string{"PASSIVE_PLAY", "CALLING_STATION"}},
	}
}
