/*
card.go - RewardCard transition functions

PURPOSE:
  All mutations of a RewardCard go through the functions in this file so the
  card invariants hold at every step:

    TotalPoints >= 0, never decreases
    0 <= AvailablePoints <= TotalPoints
    AvailablePoints = TotalPoints - sum(PointsUsed over redemptions)
    UnlockedAchievements only grows

  Violations are rejected with an error, never clamped - clamping would mask
  a reconciliation bug upstream.

TRANSITIONS:
  Award:          +n to both TotalPoints and AvailablePoints (n >= 0)
  TouchStreak:    apply day-over-day streak rules for a completion day
  Unlock:         add an achievement id exactly once
  AddRequest:     append a pending redemption request (bounded by available
                  points minus already-pending value)
  Resolve:        pending -> approved (deduct + redemption record) | denied
  Fulfill:        approved redemption -> fulfilled

SEE ALSO:
  - engine/recorder.go: Composes these into one logical transaction
  - streak.go: The pure streak rules TouchStreak applies
*/
package ledger

import (
	"time"
)

// =============================================================================
// POINT AWARDS
// =============================================================================

// Award credits n points to the card. This is the ONLY way TotalPoints
// changes; it is monotone by construction.
func (c *RewardCard) Award(n int, now time.Time) error {
	if n < 0 {
		return ErrNegativeAward
	}
	c.TotalPoints += n
	c.AvailablePoints += n
	c.UpdatedAt = now
	return nil
}

// =============================================================================
// STREAK
// =============================================================================

// StreakTransition reports a streak update so callers can react to the
// weekly crossing without re-deriving it.
type StreakTransition struct {
	Before        int
	After         int
	CrossedWeekly bool
}

// TouchStreak applies the streak rules for a completion on 'day' and records
// the day as the latest activity. Same-day repeats leave the streak alone.
func (c *RewardCard) TouchStreak(day Day, now time.Time) StreakTransition {
	before := c.StreakCount
	after := NextStreak(c.LastActivityDate, before, day)
	c.StreakCount = after
	if c.LastActivityDate.IsZero() || c.LastActivityDate.Before(day) {
		c.LastActivityDate = day
	}
	c.UpdatedAt = now
	return StreakTransition{
		Before:        before,
		After:         after,
		CrossedWeekly: CrossedWeekly(before, after),
	}
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// Unlock adds an achievement id to the card. Returns false when the id was
// already unlocked - the set is monotone and an id is never re-evaluated.
func (c *RewardCard) Unlock(id AchievementID, now time.Time) bool {
	if c.UnlockedAchievements == nil {
		c.UnlockedAchievements = make(map[AchievementID]bool)
	}
	if c.UnlockedAchievements[id] {
		return false
	}
	c.UnlockedAchievements[id] = true
	c.UpdatedAt = now
	return true
}

// =============================================================================
// REDEMPTION WORKFLOW
// =============================================================================

// PendingValue sums the point cost of all unresolved requests.
func (c *RewardCard) PendingValue() int {
	total := 0
	for i := range c.PendingRequests {
		if c.PendingRequests[i].Status == RequestPending {
			total += c.PendingRequests[i].PointsRequired
		}
	}
	return total
}

// AddRequest appends a pending redemption request. The request is rejected
// when its cost plus the value already held by pending requests exceeds
// AvailablePoints: a learner cannot promise away more than they have.
// No points are deducted until approval.
func (c *RewardCard) AddRequest(req RewardRequest) error {
	if req.PointsRequired+c.PendingValue() > c.AvailablePoints {
		return &InsufficientPointsError{
			LearnerID: c.LearnerID,
			Available: c.AvailablePoints - c.PendingValue(),
			Required:  req.PointsRequired,
		}
	}
	req.Status = RequestPending
	c.PendingRequests = append(c.PendingRequests, req)
	c.UpdatedAt = req.RequestedAt
	return nil
}

// FindRequest returns the request with the given id, or nil.
func (c *RewardCard) FindRequest(id RequestID) *RewardRequest {
	for i := range c.PendingRequests {
		if c.PendingRequests[i].ID == id {
			return &c.PendingRequests[i]
		}
	}
	return nil
}

// Resolve transitions a pending request to approved or denied.
//
// Approval deducts PointsRequired from AvailablePoints (never TotalPoints)
// and appends a RewardRedemption. If available points dropped below the cost
// since the request was made, approval fails with an explicit
// insufficient-points error - the balance is never allowed to go negative.
//
// Resolving an already-resolved request is an integrity error, not a no-op.
func (c *RewardCard) Resolve(id RequestID, redemptionID RedemptionID, approved bool, response string, now time.Time) (*RewardRedemption, error) {
	req := c.FindRequest(id)
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.IsResolved() {
		return nil, &RequestStateError{RequestID: id, Status: req.Status}
	}

	if !approved {
		req.Status = RequestDenied
		req.ParentResponse = response
		req.ResolvedAt = &now
		c.UpdatedAt = now
		return nil, nil
	}

	if req.PointsRequired > c.AvailablePoints {
		return nil, &InsufficientPointsError{
			LearnerID: c.LearnerID,
			Available: c.AvailablePoints,
			Required:  req.PointsRequired,
		}
	}

	c.AvailablePoints -= req.PointsRequired
	req.Status = RequestApproved
	req.ParentResponse = response
	req.ResolvedAt = &now

	redemption := RewardRedemption{
		ID:         redemptionID,
		RewardID:   req.RewardID,
		PointsUsed: req.PointsRequired,
		RedeemedAt: now,
		Status:     RedemptionApproved,
	}
	c.RedemptionHistory = append(c.RedemptionHistory, redemption)
	c.UpdatedAt = now
	return &redemption, nil
}

// Fulfill marks an approved redemption as fulfilled.
func (c *RewardCard) Fulfill(id RedemptionID, now time.Time) error {
	for i := range c.RedemptionHistory {
		if c.RedemptionHistory[i].ID != id {
			continue
		}
		if c.RedemptionHistory[i].Status == RedemptionFulfilled {
			return ErrAlreadyFulfilled
		}
		c.RedemptionHistory[i].Status = RedemptionFulfilled
		c.UpdatedAt = now
		return nil
	}
	return ErrRedemptionNotFound
}

// =============================================================================
// COPYING
// =============================================================================

// Clone returns a deep copy. Read accessors hand out clones so cached cards
// are never mutated outside the engine's per-learner lock.
func (c *RewardCard) Clone() *RewardCard {
	out := *c
	out.UnlockedAchievements = make(map[AchievementID]bool, len(c.UnlockedAchievements))
	for id := range c.UnlockedAchievements {
		out.UnlockedAchievements[id] = true
	}
	out.PendingRequests = make([]RewardRequest, len(c.PendingRequests))
	copy(out.PendingRequests, c.PendingRequests)
	out.RedemptionHistory = make([]RewardRedemption, len(c.RedemptionHistory))
	copy(out.RedemptionHistory, c.RedemptionHistory)
	return &out
}

// =============================================================================
// INVARIANT CHECK
// =============================================================================

// CheckInvariants verifies the card's balance equation. Used by stores after
// decode and by tests; a failure indicates corruption or a migration bug.
func (c *RewardCard) CheckInvariants() error {
	if c.TotalPoints < 0 || c.AvailablePoints < 0 {
		return &IntegrityError{LearnerID: c.LearnerID, Detail: "negative point balance"}
	}
	if c.AvailablePoints > c.TotalPoints {
		return &IntegrityError{LearnerID: c.LearnerID, Detail: "available exceeds total"}
	}
	used := 0
	for i := range c.RedemptionHistory {
		used += c.RedemptionHistory[i].PointsUsed
	}
	if c.TotalPoints-used != c.AvailablePoints {
		return &IntegrityError{LearnerID: c.LearnerID, Detail: "balance equation does not hold"}
	}
	return nil
}
