/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/lumikids/progress-engine/ledger"
)

// =============================================================================
// CARD AND PROGRESS
// =============================================================================

// CardDTO is the learner's full progress view.
type CardDTO struct {
	LearnerID        string             `json:"learner_id"`
	TotalPoints      int                `json:"total_points"`
	AvailablePoints  int                `json:"available_points"`
	StreakCount      int                `json:"streak_count"`
	LastActivityDate string             `json:"last_activity_date,omitempty"`
	Level            string             `json:"level"`
	Progress         LevelProgressDTO   `json:"progress"`
	Achievements     []string           `json:"achievements"`
	PendingRequests  []RequestDTO       `json:"pending_requests"`
	Redemptions      []RedemptionDTO    `json:"redemptions"`
	CreatedAt        string             `json:"created_at,omitempty"`
	UpdatedAt        string             `json:"updated_at,omitempty"`
}

// LevelProgressDTO is the position within the current level band.
type LevelProgressDTO struct {
	Level      string `json:"level"`
	Current    int    `json:"current"`
	Required   int    `json:"required"`
	Percentage string `json:"percentage"`
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// RecordCompletionRequest is the request to credit an activity.
type RecordCompletionRequest struct {
	ActivityID       string `json:"activity_id"`
	Score            int    `json:"score"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	Category         string `json:"category"`
}

// CompletionResultDTO reports the outcome of a completion attempt.
type CompletionResultDTO struct {
	Accepted        bool     `json:"accepted"`
	Reason          string   `json:"reason,omitempty"`
	PointsEarned    int      `json:"points_earned"`
	StreakCount     int      `json:"streak_count"`
	NewAchievements []string `json:"new_achievements,omitempty"`
}

// CompletionDTO represents one recorded completion.
type CompletionDTO struct {
	ActivityID       string `json:"activity_id"`
	CompletedAt      string `json:"completed_at"`
	Score            int    `json:"score"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	Category         string `json:"category"`
	PointsEarned     int    `json:"points_earned"`
	Synced           bool   `json:"synced"`
}

// =============================================================================
// REDEMPTION WORKFLOW
// =============================================================================

// SubmitRequestDTO is a child's reward request.
type SubmitRequestDTO struct {
	RewardID string `json:"reward_id"`
	Message  string `json:"message,omitempty"`
}

// ResolveRequestDTO is a parent's decision on a pending request.
type ResolveRequestDTO struct {
	Approved bool   `json:"approved"`
	Response string `json:"response,omitempty"`
}

// RequestDTO represents a reward request in API responses.
type RequestDTO struct {
	ID             string `json:"id"`
	RewardID       string `json:"reward_id"`
	PointsRequired int    `json:"points_required"`
	RequestedAt    string `json:"requested_at"`
	Status         string `json:"status"`
	ChildMessage   string `json:"child_message,omitempty"`
	ParentResponse string `json:"parent_response,omitempty"`
	ResolvedAt     string `json:"resolved_at,omitempty"`
}

// RedemptionDTO represents an approved redemption.
type RedemptionDTO struct {
	ID         string `json:"id"`
	RewardID   string `json:"reward_id"`
	PointsUsed int    `json:"points_used"`
	RedeemedAt string `json:"redeemed_at"`
	Status     string `json:"status"`
}

// =============================================================================
// DAILY CHALLENGES
// =============================================================================

// ChallengeDTO represents one daily challenge with the learner's state.
type ChallengeDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	BonusPoints int    `json:"bonus_points"`
	Completed   bool   `json:"completed"`
}

// ChallengeResultDTO reports a challenge completion attempt.
type ChallengeResultDTO struct {
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
	PointsEarned int    `json:"points_earned"`
}

// =============================================================================
// CATALOG
// =============================================================================

// AchievementDTO represents a catalog achievement, annotated with the
// learner's unlock state when requested for a learner.
type AchievementDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Tier        string `json:"tier"`
	BonusPoints int    `json:"bonus_points"`
	Unlocked    bool   `json:"unlocked"`
}

// RewardDTO represents a catalog reward.
type RewardDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PointsCost  int    `json:"points_cost"`
	Category    string `json:"category,omitempty"`
}

// =============================================================================
// SYNC
// =============================================================================

// ReconcileRequest merges guest progress into an authenticated account.
type ReconcileRequest struct {
	GuestID   string `json:"guest_id"`
	LearnerID string `json:"learner_id"`
}

// ReconcileResultDTO summarizes one reconciliation run.
type ReconcileResultDTO struct {
	SyncedCount  int `json:"synced_count"`
	FailedCount  int `json:"failed_count"`
	FlushedCount int `json:"flushed_count"`
}

// SnapshotDTO summarizes one backup snapshot.
type SnapshotDTO struct {
	ID          string `json:"id"`
	TakenAt     string `json:"taken_at"`
	Completions int    `json:"completions"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// toRequestDTO converts a domain request.
func toRequestDTO(r ledger.RewardRequest) RequestDTO {
	dto := RequestDTO{
		ID:             string(r.ID),
		RewardID:       r.RewardID,
		PointsRequired: r.PointsRequired,
		RequestedAt:    r.RequestedAt.Format(timeFormat),
		Status:         string(r.Status),
		ChildMessage:   r.ChildMessage,
		ParentResponse: r.ParentResponse,
	}
	if r.ResolvedAt != nil {
		dto.ResolvedAt = r.ResolvedAt.Format(timeFormat)
	}
	return dto
}

// toRedemptionDTO converts a domain redemption.
func toRedemptionDTO(r ledger.RewardRedemption) RedemptionDTO {
	return RedemptionDTO{
		ID:         string(r.ID),
		RewardID:   r.RewardID,
		PointsUsed: r.PointsUsed,
		RedeemedAt: r.RedeemedAt.Format(timeFormat),
		Status:     string(r.Status),
	}
}
