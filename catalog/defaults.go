/*
defaults.go - Built-in catalog

PURPOSE:
  A ready-to-use content set so the engine runs without any catalog file.
  Deployments with their own content load a YAML catalog instead (load.go).
*/
package catalog

// Default returns the built-in catalog. The built-in content always
// validates; a panic here means the defaults themselves are broken.
func Default() *Catalog {
	c, err := New(defaultAchievements, defaultRewards, defaultTemplates)
	if err != nil {
		panic("catalog: invalid built-in defaults: " + err.Error())
	}
	return c
}

var defaultAchievements = []Achievement{
	{
		ID: "first-steps", Title: "First Steps", Tier: TierBronze,
		Description: "Complete your first activity",
		Criteria:    Criteria{Type: CriteriaActivityCount, Threshold: 1},
	},
	{
		ID: "getting-going", Title: "Getting Going", Tier: TierBronze,
		Description: "Complete 10 activities",
		Criteria:    Criteria{Type: CriteriaActivityCount, Threshold: 10},
	},
	{
		ID: "dedicated-learner", Title: "Dedicated Learner", Tier: TierSilver,
		Description: "Complete 50 activities",
		Criteria:    Criteria{Type: CriteriaActivityCount, Threshold: 50},
	},
	{
		ID: "three-day-streak", Title: "On a Roll", Tier: TierBronze,
		Description: "Keep a 3-day streak",
		Criteria:    Criteria{Type: CriteriaStreak, Threshold: 3},
	},
	{
		ID: "week-streak", Title: "Unstoppable", Tier: TierSilver,
		Description: "Keep a 7-day streak",
		Criteria:    Criteria{Type: CriteriaStreak, Threshold: 7},
	},
	{
		ID: "month-streak", Title: "Habit Formed", Tier: TierGold,
		Description: "Keep a 30-day streak",
		Criteria:    Criteria{Type: CriteriaStreak, Threshold: 30},
	},
	{
		ID: "point-collector", Title: "Point Collector", Tier: TierSilver,
		Description: "Earn 500 points",
		Criteria:    Criteria{Type: CriteriaPointsEarned, Threshold: 500},
	},
	{
		ID: "point-hoarder", Title: "Point Hoarder", Tier: TierGold,
		Description: "Earn 2000 points",
		Criteria:    Criteria{Type: CriteriaPointsEarned, Threshold: 2000},
	},
	{
		ID: "perfectionist", Title: "Perfectionist", Tier: TierSilver,
		Description: "Score 100 on 5 activities",
		Criteria:    Criteria{Type: CriteriaPerfectScore, Threshold: 5},
	},
	{
		ID: "math-whiz", Title: "Math Whiz", Tier: TierGold,
		Description: "Complete 20 math activities",
		Criteria:    Criteria{Type: CriteriaCategoryComplete, Threshold: 20, Category: "math"},
	},
	{
		ID: "bookworm", Title: "Bookworm", Tier: TierGold,
		Description: "Complete 20 reading activities",
		Criteria:    Criteria{Type: CriteriaCategoryComplete, Threshold: 20, Category: "reading"},
	},
}

var defaultRewards = []Reward{
	{ID: "extra-screen-time", Title: "30 Minutes Extra Screen Time", PointsCost: 100, Category: "privilege"},
	{ID: "movie-night", Title: "Pick the Movie on Movie Night", PointsCost: 150, Category: "privilege"},
	{ID: "stay-up-late", Title: "Stay Up 30 Minutes Later", PointsCost: 200, Category: "privilege"},
	{ID: "small-toy", Title: "Small Toy or Book", PointsCost: 400, Category: "treat"},
	{ID: "ice-cream-trip", Title: "Ice Cream Trip", PointsCost: 250, Category: "treat"},
	{ID: "day-out", Title: "Day Out of Your Choice", PointsCost: 1000, Category: "experience"},
}

var defaultTemplates = []ChallengeTemplate{
	{Title: "Complete 3 activities today", Category: "", BonusPoints: 30},
	{Title: "Finish a math activity", Category: "math", BonusPoints: 20},
	{Title: "Finish a reading activity", Category: "reading", BonusPoints: 20},
	{Title: "Score 80 or higher on any activity", Category: "", BonusPoints: 25},
	{Title: "Get a perfect score", Category: "", BonusPoints: 40},
	{Title: "Spend 20 minutes learning", Category: "", BonusPoints: 25},
	{Title: "Try a science activity", Category: "science", BonusPoints: 20},
	{Title: "Practice spelling", Category: "spelling", BonusPoints: 20},
}
