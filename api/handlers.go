/*
handlers.go - HTTP API handlers for the progress engine

PURPOSE:
  Exposes the progress engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Progress:
    GET    /api/learners/{id}/card          Full progress view
    GET    /api/learners/{id}/level         Level and progress to next
    GET    /api/learners/{id}/completions   Completion history
    GET    /api/learners/{id}/redemptions   Redemption audit trail

  Completions:
    POST   /api/learners/{id}/completions   Credit an activity

  Redemption workflow:
    POST   /api/learners/{id}/requests                       Submit reward request
    POST   /api/learners/{id}/requests/{requestID}/resolve   Approve or deny
    POST   /api/learners/{id}/redemptions/{redemptionID}/fulfill

  Daily challenges:
    GET    /api/learners/{id}/challenges/today
    POST   /api/learners/{id}/challenges/{challengeID}/complete

  Sync:
    POST   /api/sync/reconcile              Merge guest progress into account
    POST   /api/learners/{id}/backup        Snapshot remote completions
    POST   /api/learners/{id}/reset         Clear all progress

  Catalog:
    GET    /api/catalog/achievements        (?learner_id= annotates unlocks)
    GET    /api/catalog/rewards

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (insufficient points, already resolved/fulfilled)
  - 502: Remote completion API unavailable
  - 500: Internal errors

  Business-rule rejections of RECORDING operations (duplicate activity,
  already-completed challenge) are not errors at all: they come back as
  200 with accepted=false, because retries and replays are expected.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumikids/progress-engine/engine"
	"github.com/lumikids/progress-engine/ledger"
	"github.com/lumikids/progress-engine/syncer"
)

const timeFormat = time.RFC3339

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *engine.Engine
	Reconciler *syncer.Reconciler // nil when no remote is configured
	Backup     *syncer.Backup     // nil when no remote is configured
}

// NewHandler creates a new handler around the engine. Reconciler and Backup
// may be nil for local-only deployments; their endpoints then return 503.
func NewHandler(eng *engine.Engine, rec *syncer.Reconciler, backup *syncer.Backup) *Handler {
	return &Handler{Engine: eng, Reconciler: rec, Backup: backup}
}

func learnerID(r *http.Request) ledger.LearnerID {
	return ledger.LearnerID(chi.URLParam(r, "id"))
}

// =============================================================================
// PROGRESS READS
// =============================================================================

// GetCard returns the learner's full progress view.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := learnerID(r)

	card, err := h.Engine.Card(r.Context(), id)
	if errors.Is(err, ledger.ErrCardNotFound) {
		// A learner with no card yet is a valid empty state, not a 404.
		card = ledger.NewRewardCard(id, time.Time{})
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card", err)
		return
	}

	progress := ledger.Progress(card.TotalPoints)

	dto := CardDTO{
		LearnerID:       string(card.LearnerID),
		TotalPoints:     card.TotalPoints,
		AvailablePoints: card.AvailablePoints,
		StreakCount:     card.StreakCount,
		Level:           string(progress.Level),
		Progress:        toProgressDTO(progress),
		Achievements:    make([]string, 0, len(card.UnlockedAchievements)),
		PendingRequests: make([]RequestDTO, 0, len(card.PendingRequests)),
		Redemptions:     make([]RedemptionDTO, 0, len(card.RedemptionHistory)),
	}
	if !card.LastActivityDate.IsZero() {
		dto.LastActivityDate = card.LastActivityDate.String()
	}
	if !card.CreatedAt.IsZero() {
		dto.CreatedAt = card.CreatedAt.Format(timeFormat)
		dto.UpdatedAt = card.UpdatedAt.Format(timeFormat)
	}
	for id := range card.UnlockedAchievements {
		dto.Achievements = append(dto.Achievements, string(id))
	}
	for _, req := range card.PendingRequests {
		dto.PendingRequests = append(dto.PendingRequests, toRequestDTO(req))
	}
	for _, red := range card.RedemptionHistory {
		dto.Redemptions = append(dto.Redemptions, toRedemptionDTO(red))
	}

	writeJSON(w, http.StatusOK, dto)
}

// GetLevel returns the learner's level and progress to the next one.
func (h *Handler) GetLevel(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Engine.ProgressToNextLevel(r.Context(), learnerID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute level", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(progress))
}

// GetCompletions returns the learner's completion history, oldest first.
func (h *Handler) GetCompletions(w http.ResponseWriter, r *http.Request) {
	completions, err := h.Engine.Completions(r.Context(), learnerID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load completions", err)
		return
	}

	dtos := make([]CompletionDTO, len(completions))
	for i, c := range completions {
		dtos[i] = CompletionDTO{
			ActivityID:       string(c.ActivityID),
			CompletedAt:      c.CompletedAt.Format(timeFormat),
			Score:            c.Score,
			TimeSpentSeconds: c.TimeSpentSeconds,
			Category:         c.Category,
			PointsEarned:     c.PointsEarned,
			Synced:           c.Synced,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRedemptions returns the redemption audit trail.
func (h *Handler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	redemptions, err := h.Engine.RedemptionHistory(r.Context(), learnerID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load redemptions", err)
		return
	}

	dtos := make([]RedemptionDTO, len(redemptions))
	for i, red := range redemptions {
		dtos[i] = toRedemptionDTO(red)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// RecordCompletion credits an activity for a learner.
func (h *Handler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	var req RecordCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActivityID == "" {
		writeError(w, http.StatusBadRequest, "activity_id is required", nil)
		return
	}
	if req.Score < 0 || req.Score > 100 {
		writeError(w, http.StatusBadRequest, "score must be between 0 and 100", nil)
		return
	}

	result, err := h.Engine.RecordCompletion(r.Context(), engine.CompletionInput{
		LearnerID:        learnerID(r),
		ActivityID:       ledger.ActivityID(req.ActivityID),
		Score:            req.Score,
		TimeSpentSeconds: req.TimeSpentSeconds,
		Category:         req.Category,
	})
	if err != nil {
		writeDomainError(w, "Failed to record completion", err)
		return
	}

	dto := CompletionResultDTO{
		Accepted:     result.Accepted,
		Reason:       result.Reason,
		PointsEarned: result.PointsEarned,
		StreakCount:  result.StreakCount,
	}
	for _, id := range result.NewAchievements {
		dto.NewAchievements = append(dto.NewAchievements, string(id))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// REDEMPTION WORKFLOW
// =============================================================================

// SubmitRequest creates a pending reward request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.RewardID == "" {
		writeError(w, http.StatusBadRequest, "reward_id is required", nil)
		return
	}

	created, err := h.Engine.RequestReward(r.Context(), learnerID(r), req.RewardID, req.Message)
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// ResolveRequest approves or denies a pending reward request.
func (h *Handler) ResolveRequest(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	requestID := ledger.RequestID(chi.URLParam(r, "requestID"))
	redemption, err := h.Engine.ResolveRequest(r.Context(), learnerID(r), requestID, req.Approved, req.Response)
	if err != nil {
		writeDomainError(w, "Failed to resolve request", err)
		return
	}

	if redemption == nil {
		// Denied: no redemption record is created.
		writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(*redemption))
}

// FulfillRedemption marks an approved redemption as handed over.
func (h *Handler) FulfillRedemption(w http.ResponseWriter, r *http.Request) {
	redemptionID := ledger.RedemptionID(chi.URLParam(r, "redemptionID"))
	if err := h.Engine.FulfillRedemption(r.Context(), learnerID(r), redemptionID); err != nil {
		writeDomainError(w, "Failed to fulfill redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "fulfilled"})
}

// =============================================================================
// DAILY CHALLENGES
// =============================================================================

// TodayChallenges returns today's challenge set with the learner's state.
func (h *Handler) TodayChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, completed, err := h.Engine.TodayChallenges(r.Context(), learnerID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load challenges", err)
		return
	}

	dtos := make([]ChallengeDTO, len(challenges))
	for i, c := range challenges {
		dtos[i] = ChallengeDTO{
			ID:          string(c.ID),
			Date:        c.Date.String(),
			Title:       c.Title,
			Description: c.Description,
			Category:    c.Category,
			BonusPoints: c.BonusPoints,
			Completed:   completed[c.ID],
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CompleteChallenge credits a daily challenge's bonus points.
func (h *Handler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	id := ledger.ChallengeID(chi.URLParam(r, "challengeID"))
	result, err := h.Engine.CompleteChallenge(r.Context(), learnerID(r), id)
	if err != nil {
		writeDomainError(w, "Failed to complete challenge", err)
		return
	}
	writeJSON(w, http.StatusOK, ChallengeResultDTO{
		Accepted:     result.Accepted,
		Reason:       result.Reason,
		PointsEarned: result.PointsEarned,
	})
}

// =============================================================================
// SYNC
// =============================================================================

// Reconcile merges guest progress into an authenticated account.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, "No remote configured", nil)
		return
	}

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GuestID == "" || req.LearnerID == "" {
		writeError(w, http.StatusBadRequest, "guest_id and learner_id are required", nil)
		return
	}

	result, err := h.Reconciler.Reconcile(r.Context(),
		ledger.LearnerID(req.GuestID), ledger.LearnerID(req.LearnerID))
	if err != nil {
		writeDomainError(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResultDTO{
		SyncedCount:  result.SyncedCount,
		FailedCount:  result.FailedCount,
		FlushedCount: result.FlushedCount,
	})
}

// TakeBackup snapshots the learner's remote completions locally.
func (h *Handler) TakeBackup(w http.ResponseWriter, r *http.Request) {
	if h.Backup == nil {
		writeError(w, http.StatusServiceUnavailable, "No remote configured", nil)
		return
	}

	snap, err := h.Backup.Run(r.Context(), learnerID(r))
	if err != nil {
		writeDomainError(w, "Backup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotDTO{
		ID:          snap.ID,
		TakenAt:     snap.TakenAt,
		Completions: len(snap.Completions),
	})
}

// ResetProgress clears all local (and remote, when configured) progress.
func (h *Handler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ResetProgress(r.Context(), learnerID(r)); err != nil {
		writeDomainError(w, "Reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// CATALOG
// =============================================================================

// ListAchievements returns the achievement catalog. When learner_id is
// given, each entry is annotated with the learner's unlock state.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked := map[ledger.AchievementID]bool{}
	if id := r.URL.Query().Get("learner_id"); id != "" {
		card, err := h.Engine.Card(r.Context(), ledger.LearnerID(id))
		if err != nil && !errors.Is(err, ledger.ErrCardNotFound) {
			writeError(w, http.StatusInternalServerError, "Failed to load card", err)
			return
		}
		if card != nil {
			unlocked = card.UnlockedAchievements
		}
	}

	achievements := h.Engine.Catalog().Achievements()
	dtos := make([]AchievementDTO, len(achievements))
	for i, a := range achievements {
		dtos[i] = AchievementDTO{
			ID:          string(a.ID),
			Title:       a.Title,
			Description: a.Description,
			Tier:        string(a.Tier),
			BonusPoints: a.Tier.RewardPoints(),
			Unlocked:    unlocked[a.ID],
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRewards returns the reward catalog.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards := h.Engine.Catalog().Rewards()
	dtos := make([]RewardDTO, len(rewards))
	for i, rw := range rewards {
		dtos[i] = RewardDTO{
			ID:          rw.ID,
			Title:       rw.Title,
			Description: rw.Description,
			PointsCost:  rw.PointsCost,
			Category:    rw.Category,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func toProgressDTO(p ledger.LevelProgress) LevelProgressDTO {
	return LevelProgressDTO{
		Level:      string(p.Level),
		Current:    p.Current,
		Required:   p.Required,
		Percentage: p.Percentage.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsBusinessRejection(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrRemoteUnavailable):
		writeError(w, http.StatusBadGateway, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
