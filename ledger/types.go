/*
Package ledger provides the core gamification ledger for learner progress.

PURPOSE:
  This package contains the domain types and pure transition functions for
  per-learner progress state: the RewardCard (points, level, streak,
  achievements, redemptions), activity completions, reward requests, and
  daily challenges. All derived values (level, progress-to-next-level,
  available points) are computed from recorded state - there is no cached
  value that can drift out of sync.

KEY CONCEPTS IN THIS FILE (types.go):
  - LearnerID: The identity a card is owned by (auth user id or guest id)
  - RewardCard: Per-learner ledger state
  - ActivityCompletion: One credited activity, unique per (learner, activity)
  - RewardRequest / RewardRedemption: Redemption workflow records
  - DailyChallenge: Deterministic per-day challenge instance

DESIGN PRINCIPLES:
  1. Monotonicity: TotalPoints never decreases; unlocked achievements never
     un-unlock; redemption history is append-only
  2. Idempotency: A given activity is creditable at most once per learner
  3. Derivation: Level and progress are pure functions of TotalPoints
  4. Single owner: A card belongs to exactly one learner identity; only the
     sync reconciler may merge two identities' progress

SEE ALSO:
  - card.go: RewardCard transition functions and invariants
  - level.go: Level thresholds and progress computation
  - streak.go: Day-over-day streak continuity
  - store.go: Persistence and remote collaborator interfaces
*/
package ledger

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// LearnerID identifies the owner of a RewardCard. It is either an
// authenticated user id or a stable guest id such as "guest".
type LearnerID string

type ActivityID string
type RequestID string
type RedemptionID string
type AchievementID string
type ChallengeID string

// GuestID is the sentinel identity used before authentication.
const GuestID LearnerID = "guest"

// IsGuest reports whether the identity is the guest sentinel.
func (id LearnerID) IsGuest() bool { return id == GuestID }

// =============================================================================
// REWARD CARD - Per-learner ledger state
// =============================================================================

// RewardCard is the ledger for a single learner.
//
// INVARIANTS:
//   - TotalPoints >= 0 and never decreases
//   - 0 <= AvailablePoints <= TotalPoints
//   - AvailablePoints = TotalPoints - sum(PointsUsed over redemptions)
//   - UnlockedAchievements only grows
type RewardCard struct {
	LearnerID            LearnerID
	TotalPoints          int
	AvailablePoints      int
	StreakCount          int
	LastActivityDate     Day // zero value = no activity yet
	UnlockedAchievements map[AchievementID]bool
	PendingRequests      []RewardRequest
	RedemptionHistory    []RewardRedemption

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRewardCard creates an empty card for a learner.
func NewRewardCard(learnerID LearnerID, now time.Time) *RewardCard {
	return &RewardCard{
		LearnerID:            learnerID,
		UnlockedAchievements: make(map[AchievementID]bool),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// =============================================================================
// ACTIVITY COMPLETION - One credited activity
// =============================================================================

// ActivityCompletion records a single credited activity. The identity key
// (LearnerID, ActivityID) is unique: the recorder rejects a second completion
// of the same activity for the same learner.
type ActivityCompletion struct {
	LearnerID        LearnerID
	ActivityID       ActivityID
	CompletedAt      time.Time
	Score            int // 0-100
	TimeSpentSeconds int
	Category         string
	PointsEarned     int // computed once by the recorder, immutable

	// Synced marks whether the best-effort remote write succeeded.
	// Unsynced completions are picked up by the next reconciliation.
	Synced bool
}

// =============================================================================
// REWARD REQUEST - pending -> approved | denied
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// RewardRequest is a child's request to redeem a reward, resolved by a
// parent. Terminal once approved or denied.
type RewardRequest struct {
	ID             RequestID
	RewardID       string
	PointsRequired int
	RequestedAt    time.Time
	Status         RequestStatus
	ChildMessage   string
	ParentResponse string
	ResolvedAt     *time.Time
}

// IsResolved reports whether the request reached a terminal state.
func (r *RewardRequest) IsResolved() bool { return r.Status != RequestPending }

// =============================================================================
// REWARD REDEMPTION - Append-only audit record
// =============================================================================

type RedemptionStatus string

const (
	RedemptionApproved  RedemptionStatus = "approved"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
)

// RewardRedemption records an approved redemption. Created when a request is
// approved; moves to fulfilled when the reward is handed over.
type RewardRedemption struct {
	ID         RedemptionID
	RewardID   string
	PointsUsed int
	RedeemedAt time.Time
	Status     RedemptionStatus
}

// =============================================================================
// DAILY CHALLENGE - Deterministic per-day instance
// =============================================================================

// DailyChallenge is one challenge instance for a calendar day. Instances are
// derived deterministically from catalog templates, keyed by
// (date, template index), so regenerating a day is a no-op.
type DailyChallenge struct {
	ID            ChallengeID
	Date          Day
	TemplateIndex int
	Title         string
	Description   string
	Category      string
	BonusPoints   int
}

// =============================================================================
// RESULTS - Structured command outcomes
// =============================================================================

// CompletionResult is returned by the completion recorder. A business-rule
// rejection (duplicate activity) is reported with Accepted=false, not an
// error: callers must treat it as "already credited".
type CompletionResult struct {
	Accepted        bool
	Reason          string
	PointsEarned    int
	StreakCount     int
	NewAchievements []AchievementID
}

// ReconcileResult summarizes one reconciliation run. Failures are per-item:
// a failed replay or push never aborts the rest of the batch.
type ReconcileResult struct {
	SyncedCount  int // guest completions replayed into the account
	FailedCount  int
	FlushedCount int // account completions pushed to the remote
}
