/*
achievements.go - Catalog-driven achievement evaluation

PURPOSE:
  Scans the achievement catalog against current card state and unlocks
  newly-satisfied entries exactly once. The unlocked set on the card is the
  only guard needed: an id in the set is skipped forever.

AWARD PATH:
  Tier rewards flow through the same card award path as completions, so an
  unlock raises TotalPoints and can satisfy a points_earned criterion on a
  LATER evaluation. A single pass never awards the same achievement twice.

SEE ALSO:
  - catalog/catalog.go: The closed criterion set this file switches over
*/
package engine

import (
	"context"
	"time"

	"github.com/lumikids/progress-engine/catalog"
	"github.com/lumikids/progress-engine/ledger"
)

// Evaluate re-runs achievement evaluation for a learner outside of the
// recording path (e.g. after a catalog update) and persists any unlocks.
func (e *Engine) Evaluate(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.AchievementID, error) {
	lock := e.lockLearner(learnerID)
	defer lock.Unlock()

	card, err := e.loadCardForUpdate(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	completions, err := e.store.Completions(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	unlocked := e.evaluateLocked(card, completions, e.now())
	if len(unlocked) == 0 {
		return nil, nil
	}
	if err := e.persistCard(ctx, card); err != nil {
		return nil, err
	}
	return unlocked, nil
}

// evaluateLocked runs one evaluation pass. Caller holds the learner lock
// and persists the card afterwards.
func (e *Engine) evaluateLocked(card *ledger.RewardCard, completions []ledger.ActivityCompletion, now time.Time) []ledger.AchievementID {
	var unlocked []ledger.AchievementID

	for _, a := range e.catalog.Achievements() {
		if card.UnlockedAchievements[a.ID] {
			continue
		}
		if !criterionMet(a.Criteria, card, completions) {
			continue
		}
		if !card.Unlock(a.ID, now) {
			continue
		}
		// Tier reward goes through the ordinary award path; Award with a
		// non-negative amount cannot fail.
		_ = card.Award(a.Tier.RewardPoints(), now)
		unlocked = append(unlocked, a.ID)
	}

	return unlocked
}

// criterionMet tests one criterion against card state. The catalog
// validated the type at load, so the default arm is unreachable.
func criterionMet(c catalog.Criteria, card *ledger.RewardCard, completions []ledger.ActivityCompletion) bool {
	switch c.Type {
	case catalog.CriteriaStreak:
		return card.StreakCount >= c.Threshold
	case catalog.CriteriaPointsEarned:
		return card.TotalPoints >= c.Threshold
	case catalog.CriteriaActivityCount:
		return len(completions) >= c.Threshold
	case catalog.CriteriaCategoryComplete:
		count := 0
		for i := range completions {
			if completions[i].Category == c.Category {
				count++
			}
		}
		return count >= c.Threshold
	case catalog.CriteriaPerfectScore:
		count := 0
		for i := range completions {
			if completions[i].Score >= perfectScore {
				count++
			}
		}
		return count >= c.Threshold
	default:
		return false
	}
}
