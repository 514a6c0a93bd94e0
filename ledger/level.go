/*
level.go - Deterministic mapping from cumulative points to level tiers

PURPOSE:
  Pure, stateless leveling. Level is always derived from TotalPoints at the
  moment it is needed; it is never stored, so it can never drift.

TIERS:
  bronze    0+
  silver    500+
  gold      1500+
  platinum  3000+

PROGRESS:
  Progress() reports position within the current band. Percentage uses
  decimal arithmetic to avoid float drift in the API layer; on the top tier
  it is capped at 100.

SEE ALSO:
  - card.go: Callers recompute level after every point mutation
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEVEL TIERS
// =============================================================================

type Level string

const (
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
)

// Ascending thresholds. LevelFor depends on this ordering.
var levelThresholds = []struct {
	Level     Level
	MinPoints int
}{
	{LevelBronze, 0},
	{LevelSilver, 500},
	{LevelGold, 1500},
	{LevelPlatinum, 3000},
}

// LevelFor returns the tier for a cumulative point total.
// Pure, deterministic, non-decreasing step function.
func LevelFor(totalPoints int) Level {
	level := LevelBronze
	for _, t := range levelThresholds {
		if totalPoints >= t.MinPoints {
			level = t.Level
		}
	}
	return level
}

// NextThreshold returns the minimum points of the next tier, or (0, false)
// when already on the top tier.
func NextThreshold(totalPoints int) (int, bool) {
	for _, t := range levelThresholds {
		if totalPoints < t.MinPoints {
			return t.MinPoints, true
		}
	}
	return 0, false
}

// =============================================================================
// PROGRESS - Position within the current band
// =============================================================================

// LevelProgress describes position within the current level band.
type LevelProgress struct {
	Level      Level
	Current    int             // points earned within the band
	Required   int             // band width; 0 on the top tier
	Percentage decimal.Decimal // 0-100, capped at 100 on the top tier
}

// Progress computes position within the current level band. Must be derived
// from TotalPoints on every read - never cached separately.
func Progress(totalPoints int) LevelProgress {
	level := LevelFor(totalPoints)

	floor := 0
	for _, t := range levelThresholds {
		if totalPoints >= t.MinPoints {
			floor = t.MinPoints
		}
	}

	next, ok := NextThreshold(totalPoints)
	if !ok {
		// Top tier: nothing further to earn toward.
		return LevelProgress{
			Level:      level,
			Current:    totalPoints - floor,
			Required:   0,
			Percentage: decimal.NewFromInt(100),
		}
	}

	current := totalPoints - floor
	required := next - floor
	pct := decimal.NewFromInt(int64(current)).
		Div(decimal.NewFromInt(int64(required))).
		Mul(decimal.NewFromInt(100)).
		Round(1)

	return LevelProgress{
		Level:      level,
		Current:    current,
		Required:   required,
		Percentage: pct,
	}
}
