/*
codec.go - Versioned card blob encoding

PURPOSE:
  Cards are persisted as JSON blobs behind a key-value-ish store. Blobs are
  versioned so structural changes to RewardCard never silently corrupt old
  snapshots: decode migrates explicitly, version by version, and rejects
  blobs written by a newer build.

VERSIONS:
  v1 (current): snake_case fields, achievements as a list
  v0 (legacy):  camelCase fields from the first prototype, no version tag

SEE ALSO:
  - store/sqlite/sqlite.go: Persists these blobs
*/
package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// CardSchemaVersion is the version written by this build.
const CardSchemaVersion = 1

// cardBlobV1 is the persisted shape of a RewardCard.
type cardBlobV1 struct {
	SchemaVersion     int                `json:"schema_version"`
	LearnerID         string             `json:"learner_id"`
	TotalPoints       int                `json:"total_points"`
	AvailablePoints   int                `json:"available_points"`
	StreakCount       int                `json:"streak_count"`
	LastActivityDate  string             `json:"last_activity_date,omitempty"`
	Achievements      []string           `json:"achievements"`
	PendingRequests   []requestBlob      `json:"pending_requests,omitempty"`
	RedemptionHistory []redemptionBlob   `json:"redemption_history,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type requestBlob struct {
	ID             string     `json:"id"`
	RewardID       string     `json:"reward_id"`
	PointsRequired int        `json:"points_required"`
	RequestedAt    time.Time  `json:"requested_at"`
	Status         string     `json:"status"`
	ChildMessage   string     `json:"child_message,omitempty"`
	ParentResponse string     `json:"parent_response,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

type redemptionBlob struct {
	ID         string    `json:"id"`
	RewardID   string    `json:"reward_id"`
	PointsUsed int       `json:"points_used"`
	RedeemedAt time.Time `json:"redeemed_at"`
	Status     string    `json:"status"`
}

// cardBlobV0 is the loosely-typed prototype shape: camelCase, points only,
// no version tag. Migrated on read.
type cardBlobV0 struct {
	LearnerID       string   `json:"learnerId"`
	TotalPoints     int      `json:"totalPoints"`
	AvailablePoints int      `json:"availablePoints"`
	Streak          int      `json:"streak"`
	LastActivity    string   `json:"lastActivity"`
	Achievements    []string `json:"achievements"`
}

// EncodeCard serializes a card at the current schema version.
func EncodeCard(c *RewardCard) ([]byte, error) {
	blob := cardBlobV1{
		SchemaVersion:    CardSchemaVersion,
		LearnerID:        string(c.LearnerID),
		TotalPoints:      c.TotalPoints,
		AvailablePoints:  c.AvailablePoints,
		StreakCount:      c.StreakCount,
		LastActivityDate: c.LastActivityDate.String(),
		Achievements:     make([]string, 0, len(c.UnlockedAchievements)),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	for id := range c.UnlockedAchievements {
		blob.Achievements = append(blob.Achievements, string(id))
	}
	for _, r := range c.PendingRequests {
		blob.PendingRequests = append(blob.PendingRequests, requestBlob{
			ID:             string(r.ID),
			RewardID:       r.RewardID,
			PointsRequired: r.PointsRequired,
			RequestedAt:    r.RequestedAt,
			Status:         string(r.Status),
			ChildMessage:   r.ChildMessage,
			ParentResponse: r.ParentResponse,
			ResolvedAt:     r.ResolvedAt,
		})
	}
	for _, r := range c.RedemptionHistory {
		blob.RedemptionHistory = append(blob.RedemptionHistory, redemptionBlob{
			ID:         string(r.ID),
			RewardID:   r.RewardID,
			PointsUsed: r.PointsUsed,
			RedeemedAt: r.RedeemedAt,
			Status:     string(r.Status),
		})
	}
	return json.Marshal(blob)
}

// DecodeCard deserializes a card blob, migrating legacy versions on read.
func DecodeCard(data []byte) (*RewardCard, error) {
	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("corrupt card blob: %w", err)
	}

	switch probe.SchemaVersion {
	case 0:
		return decodeCardV0(data)
	case 1:
		return decodeCardV1(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrSchemaVersion, probe.SchemaVersion)
	}
}

func decodeCardV1(data []byte) (*RewardCard, error) {
	var blob cardBlobV1
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("corrupt card blob: %w", err)
	}

	lastActivity, err := ParseDay(blob.LastActivityDate)
	if err != nil {
		return nil, err
	}

	card := &RewardCard{
		LearnerID:            LearnerID(blob.LearnerID),
		TotalPoints:          blob.TotalPoints,
		AvailablePoints:      blob.AvailablePoints,
		StreakCount:          blob.StreakCount,
		LastActivityDate:     lastActivity,
		UnlockedAchievements: make(map[AchievementID]bool, len(blob.Achievements)),
		CreatedAt:            blob.CreatedAt,
		UpdatedAt:            blob.UpdatedAt,
	}
	for _, id := range blob.Achievements {
		card.UnlockedAchievements[AchievementID(id)] = true
	}
	for _, r := range blob.PendingRequests {
		card.PendingRequests = append(card.PendingRequests, RewardRequest{
			ID:             RequestID(r.ID),
			RewardID:       r.RewardID,
			PointsRequired: r.PointsRequired,
			RequestedAt:    r.RequestedAt,
			Status:         RequestStatus(r.Status),
			ChildMessage:   r.ChildMessage,
			ParentResponse: r.ParentResponse,
			ResolvedAt:     r.ResolvedAt,
		})
	}
	for _, r := range blob.RedemptionHistory {
		card.RedemptionHistory = append(card.RedemptionHistory, RewardRedemption{
			ID:         RedemptionID(r.ID),
			RewardID:   r.RewardID,
			PointsUsed: r.PointsUsed,
			RedeemedAt: r.RedeemedAt,
			Status:     RedemptionStatus(r.Status),
		})
	}
	return card, nil
}

// decodeCardV0 migrates the prototype shape. V0 predates the redemption
// workflow, so requests and history start empty.
func decodeCardV0(data []byte) (*RewardCard, error) {
	var blob cardBlobV0
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("corrupt card blob: %w", err)
	}

	lastActivity, err := ParseDay(blob.LastActivity)
	if err != nil {
		return nil, err
	}

	card := &RewardCard{
		LearnerID:            LearnerID(blob.LearnerID),
		TotalPoints:          blob.TotalPoints,
		AvailablePoints:      blob.AvailablePoints,
		StreakCount:          blob.Streak,
		LastActivityDate:     lastActivity,
		UnlockedAchievements: make(map[AchievementID]bool, len(blob.Achievements)),
	}
	for _, id := range blob.Achievements {
		card.UnlockedAchievements[AchievementID(id)] = true
	}
	return card, nil
}
