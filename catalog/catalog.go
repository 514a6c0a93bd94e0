/*
Package catalog provides the static achievement, reward, and daily-challenge
catalogs consumed by the progress engine.

PURPOSE:
  Catalogs are content, not code: closed, validated mappings loaded once at
  startup. A missing or malformed entry is a configuration error detected at
  load time - never a nil-check at a call site.

KEY CONCEPTS:
  - Achievement: Unlock criteria + tier; the tier fixes the point reward
  - Reward: Something a learner can request; costs available points
  - ChallengeTemplate: Source material for deterministic daily challenges

CRITERION TYPES (closed set):
  streak            StreakCount >= threshold
  points_earned     TotalPoints >= threshold
  activity_count    len(completions) >= threshold
  category_complete completions in Category >= threshold
  perfect_score     completions with score >= 100 >= threshold

VALIDATION:
  Validate() rejects unknown criterion types, duplicate ids, non-positive
  thresholds, and category_complete entries without a category.

SEE ALSO:
  - defaults.go: The built-in catalog
  - load.go: YAML catalog files
  - engine/achievements.go: The evaluator driven by this catalog
*/
package catalog

import (
	"fmt"

	"github.com/lumikids/progress-engine/ledger"
)

// =============================================================================
// CRITERIA
// =============================================================================

type CriteriaType string

const (
	CriteriaStreak           CriteriaType = "streak"
	CriteriaPointsEarned     CriteriaType = "points_earned"
	CriteriaActivityCount    CriteriaType = "activity_count"
	CriteriaCategoryComplete CriteriaType = "category_complete"
	CriteriaPerfectScore     CriteriaType = "perfect_score"
)

var knownCriteria = map[CriteriaType]bool{
	CriteriaStreak:           true,
	CriteriaPointsEarned:     true,
	CriteriaActivityCount:    true,
	CriteriaCategoryComplete: true,
	CriteriaPerfectScore:     true,
}

// Criteria describes when an achievement unlocks.
type Criteria struct {
	Type      CriteriaType `yaml:"type"`
	Threshold int          `yaml:"threshold"`
	Category  string       `yaml:"category,omitempty"` // category_complete only
}

// =============================================================================
// TIERS
// =============================================================================

// Tier fixes the point reward an achievement grants when unlocked.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

var tierRewards = map[Tier]int{
	TierBronze:   25,
	TierSilver:   50,
	TierGold:     100,
	TierPlatinum: 200,
}

// RewardPoints returns the fixed point reward for a tier.
func (t Tier) RewardPoints() int { return tierRewards[t] }

// =============================================================================
// ENTRIES
// =============================================================================

// Achievement is one catalog entry evaluated against card state.
type Achievement struct {
	ID          ledger.AchievementID `yaml:"id"`
	Title       string               `yaml:"title"`
	Description string               `yaml:"description,omitempty"`
	Tier        Tier                 `yaml:"tier"`
	Criteria    Criteria             `yaml:"criteria"`
}

// Reward is a redeemable catalog entry.
type Reward struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	PointsCost  int    `yaml:"points_cost"`
	Category    string `yaml:"category,omitempty"`
}

// ChallengeTemplate is source material for daily challenge generation.
type ChallengeTemplate struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Category    string `yaml:"category,omitempty"`
	BonusPoints int    `yaml:"bonus_points"`
}

// =============================================================================
// CATALOG - Closed, validated mapping
// =============================================================================

// Catalog bundles the three content lists. Construct via New (or Load) so
// every catalog in circulation has passed validation.
type Catalog struct {
	achievements []Achievement
	rewards      map[string]Reward
	templates    []ChallengeTemplate
}

// New validates the entries and builds a catalog.
func New(achievements []Achievement, rewards []Reward, templates []ChallengeTemplate) (*Catalog, error) {
	c := &Catalog{
		achievements: achievements,
		rewards:      make(map[string]Reward, len(rewards)),
		templates:    templates,
	}

	seen := make(map[ledger.AchievementID]bool, len(achievements))
	for _, a := range achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement with empty id")
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate achievement id %q", a.ID)
		}
		seen[a.ID] = true
		if !knownCriteria[a.Criteria.Type] {
			return nil, fmt.Errorf("achievement %q: unknown criteria type %q", a.ID, a.Criteria.Type)
		}
		if a.Criteria.Threshold <= 0 {
			return nil, fmt.Errorf("achievement %q: threshold must be positive", a.ID)
		}
		if a.Criteria.Type == CriteriaCategoryComplete && a.Criteria.Category == "" {
			return nil, fmt.Errorf("achievement %q: category_complete requires a category", a.ID)
		}
		if _, ok := tierRewards[a.Tier]; !ok {
			return nil, fmt.Errorf("achievement %q: unknown tier %q", a.ID, a.Tier)
		}
	}

	for _, r := range rewards {
		if r.ID == "" {
			return nil, fmt.Errorf("reward with empty id")
		}
		if _, dup := c.rewards[r.ID]; dup {
			return nil, fmt.Errorf("duplicate reward id %q", r.ID)
		}
		if r.PointsCost <= 0 {
			return nil, fmt.Errorf("reward %q: points_cost must be positive", r.ID)
		}
		c.rewards[r.ID] = r
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("challenge template list is empty")
	}
	for i, t := range templates {
		if t.Title == "" {
			return nil, fmt.Errorf("challenge template %d: empty title", i)
		}
		if t.BonusPoints <= 0 {
			return nil, fmt.Errorf("challenge template %d: bonus_points must be positive", i)
		}
	}

	return c, nil
}

// Achievements returns all achievement entries in catalog order.
func (c *Catalog) Achievements() []Achievement { return c.achievements }

// Achievement looks up an achievement by id. A missing id is a
// configuration error.
func (c *Catalog) Achievement(id ledger.AchievementID) (Achievement, error) {
	for _, a := range c.achievements {
		if a.ID == id {
			return a, nil
		}
	}
	return Achievement{}, fmt.Errorf("%w: %q", ledger.ErrAchievementUnknown, id)
}

// Reward looks up a reward by id. A missing id is a configuration error.
func (c *Catalog) Reward(id string) (Reward, error) {
	r, ok := c.rewards[id]
	if !ok {
		return Reward{}, fmt.Errorf("%w: %q", ledger.ErrRewardNotFound, id)
	}
	return r, nil
}

// Rewards returns all rewards (order unspecified).
func (c *Catalog) Rewards() []Reward {
	out := make([]Reward, 0, len(c.rewards))
	for _, r := range c.rewards {
		out = append(out, r)
	}
	return out
}

// Templates returns the challenge templates in catalog order.
func (c *Catalog) Templates() []ChallengeTemplate { return c.templates }
