/*
streak.go - Day-over-day streak continuity

PURPOSE:
  Derives the new streak length from the last recorded activity day and the
  day of the current completion. Pure function - the card mutation happens
  in card.go.

RULES:
  - Last activity was yesterday:      streak + 1
  - Last activity was today:          unchanged (same-day repeats don't inflate)
  - Dated before the last activity:   unchanged (a replayed past event
                                      cannot break today's continuity)
  - Gap of 2+ days, or first ever:    reset to 1

WEEKLY BONUS:
  Crossing into a streak of exactly WeeklyStreakLength fires a one-time
  bonus. It does NOT re-fire at 14, 21, ... - a crossing is an upward edge,
  not a modulus. A streak that resets and climbs back to 7 is a new crossing.

SEE ALSO:
  - engine/recorder.go: Applies the streak bonus during point composition
*/
package ledger

// WeeklyStreakLength is the streak at which the one-time weekly bonus fires.
const WeeklyStreakLength = 7

// NextStreak computes the streak after a completion on day 'today', given
// the previous streak state. Pure.
func NextStreak(lastActivity Day, streak int, today Day) int {
	if lastActivity.IsZero() {
		return 1
	}
	gap := DaysBetween(lastActivity, today)
	switch {
	case gap < 0:
		// Completion dated before the last activity: a replayed past
		// event leaves the current continuity alone.
		return streak
	case gap == 0:
		// Same-day repeat completion: unchanged.
		if streak == 0 {
			return 1
		}
		return streak
	case gap == 1:
		return streak + 1
	default:
		return 1
	}
}

// CrossedWeekly reports whether the streak transition is the upward crossing
// into exactly WeeklyStreakLength.
func CrossedWeekly(before, after int) bool {
	return after == WeeklyStreakLength && before == WeeklyStreakLength-1
}
