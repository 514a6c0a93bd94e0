/*
challenges.go - Deterministic daily challenges

PURPOSE:
  Generates a fixed-size challenge set per calendar day and records
  per-learner completions. Generation is deterministic: the day's set is
  derived from an FNV-1a hash of the date string, so regenerating the same
  date - even concurrently or after a crash - produces the identical set
  and storing it again is harmless.

IDEMPOTENCY:
  - EnsureChallenges(date) twice returns the same set, generated once.
  - CompleteChallenge on an already-completed challenge is a no-op result
    (Accepted=false), not a double award. This mirrors the completion
    recorder's duplicate handling: expected, not an error.
*/
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/lumikids/progress-engine/ledger"
)

// ChallengesPerDay is the fixed size of each day's challenge set.
const ChallengesPerDay = 3

// ChallengeCompletionResult reports a challenge completion attempt.
type ChallengeCompletionResult struct {
	Accepted     bool
	Reason       string
	PointsEarned int
}

// =============================================================================
// GENERATION
// =============================================================================

// EnsureChallenges returns the challenge set for a date, generating and
// storing it on first call. Idempotent per date.
func (e *Engine) EnsureChallenges(ctx context.Context, date ledger.Day) ([]ledger.DailyChallenge, error) {
	existing, err := e.store.ChallengesFor(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	generated := e.generateChallenges(date)
	if err := e.store.PutChallenges(ctx, date, generated); err != nil {
		return nil, err
	}
	return generated, nil
}

// generateChallenges derives the day's set from the templates. No
// randomness: the same date always yields the same selection.
func (e *Engine) generateChallenges(date ledger.Day) []ledger.DailyChallenge {
	templates := e.catalog.Templates()

	h := fnv.New32a()
	h.Write([]byte(date.String()))
	seed := int(h.Sum32())

	n := ChallengesPerDay
	if n > len(templates) {
		n = len(templates)
	}

	// Step through the template list with a stride coprime-ish to its
	// length; duplicates are skipped by advancing.
	used := make(map[int]bool, n)
	challenges := make([]ledger.DailyChallenge, 0, n)
	idx := seed % len(templates)
	stride := 1
	if len(templates) > 1 {
		stride = 1 + seed%(len(templates)-1)
	}
	for len(challenges) < n {
		for used[idx] {
			idx = (idx + 1) % len(templates)
		}
		used[idx] = true
		t := templates[idx]
		challenges = append(challenges, ledger.DailyChallenge{
			ID:            challengeIDFor(date, idx),
			Date:          date,
			TemplateIndex: idx,
			Title:         t.Title,
			Description:   t.Description,
			Category:      t.Category,
			BonusPoints:   t.BonusPoints,
		})
		idx = (idx + stride) % len(templates)
	}
	return challenges
}

// challengeIDFor builds the stable challenge key: "<date>-t<templateIndex>".
func challengeIDFor(date ledger.Day, templateIndex int) ledger.ChallengeID {
	return ledger.ChallengeID(fmt.Sprintf("%s-t%d", date, templateIndex))
}

// parseChallengeID recovers the date from a challenge id.
func parseChallengeID(id ledger.ChallengeID) (ledger.Day, error) {
	s := string(id)
	i := strings.LastIndex(s, "-t")
	if i < 0 {
		return ledger.Day{}, fmt.Errorf("%w: %q", ledger.ErrChallengeNotFound, id)
	}
	if _, err := strconv.Atoi(s[i+2:]); err != nil {
		return ledger.Day{}, fmt.Errorf("%w: %q", ledger.ErrChallengeNotFound, id)
	}
	day, err := ledger.ParseDay(s[:i])
	if err != nil || day.IsZero() {
		return ledger.Day{}, fmt.Errorf("%w: %q", ledger.ErrChallengeNotFound, id)
	}
	return day, nil
}

// =============================================================================
// COMPLETION
// =============================================================================

// CompleteChallenge credits a learner with a daily challenge's bonus points.
// Completing an already-completed challenge is a no-op, not a double award.
func (e *Engine) CompleteChallenge(ctx context.Context, learnerID ledger.LearnerID, id ledger.ChallengeID) (ChallengeCompletionResult, error) {
	date, err := parseChallengeID(id)
	if err != nil {
		return ChallengeCompletionResult{}, err
	}

	challenges, err := e.EnsureChallenges(ctx, date)
	if err != nil {
		return ChallengeCompletionResult{}, err
	}

	var challenge *ledger.DailyChallenge
	for i := range challenges {
		if challenges[i].ID == id {
			challenge = &challenges[i]
			break
		}
	}
	if challenge == nil {
		return ChallengeCompletionResult{}, fmt.Errorf("%w: %q", ledger.ErrChallengeNotFound, id)
	}

	lock := e.lockLearner(learnerID)
	defer lock.Unlock()

	completed, err := e.store.CompletedChallenges(ctx, learnerID, date)
	if err != nil {
		return ChallengeCompletionResult{}, err
	}
	if completed[id] {
		return ChallengeCompletionResult{Accepted: false, Reason: "challenge already completed"}, nil
	}

	card, err := e.loadOrCreateCard(ctx, learnerID)
	if err != nil {
		return ChallengeCompletionResult{}, err
	}

	now := e.now()
	if err := card.Award(challenge.BonusPoints, now); err != nil {
		return ChallengeCompletionResult{}, err
	}

	// Bonus points can push the card across achievement thresholds.
	completions, err := e.store.Completions(ctx, learnerID)
	if err != nil {
		return ChallengeCompletionResult{}, err
	}
	e.evaluateLocked(card, completions, now)

	// One atomic store commit: the credit mark and the card land together.
	if err := e.commitChallenge(ctx, learnerID, date, id, card); err != nil {
		return ChallengeCompletionResult{}, err
	}

	return ChallengeCompletionResult{Accepted: true, PointsEarned: challenge.BonusPoints}, nil
}

// TodayChallenges is a convenience wrapper over EnsureChallenges for the
// current UTC day, with the learner's completion state attached.
func (e *Engine) TodayChallenges(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.DailyChallenge, map[ledger.ChallengeID]bool, error) {
	today := ledger.DayOf(e.now())
	challenges, err := e.EnsureChallenges(ctx, today)
	if err != nil {
		return nil, nil, err
	}
	completed, err := e.store.CompletedChallenges(ctx, learnerID, today)
	if err != nil {
		return nil, nil, err
	}
	return challenges, completed, nil
}
