/*
errors.go - Centralized error types for the progress engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages building on the ledger wrap these errors with extra context.

ERROR CATEGORIES:
  1. Business-rule rejections - Expected conditions callers branch on
     (duplicate completion, insufficient points, already-resolved request)
  2. Integrity violations - Invariants about to be broken; always rejected,
     never clamped (clamping would mask a reconciliation bug)
  3. Collaborator failures - Remote API or storage unavailable

USAGE:
    if errors.Is(err, ledger.ErrInsufficientPoints) {
        // expected: show "not enough points"
    }

SEE ALSO:
  - engine/: Returns business rejections as structured results, not errors
  - syncer/: Wraps ErrRemoteUnavailable around transport failures
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateCompletion is returned when an activity was already credited
	// for the learner. Expected during retries and reconciliation replays.
	ErrDuplicateCompletion = errors.New("activity already completed")

	// ErrInsufficientPoints is returned when a redemption exceeds available
	// points, at request time or at approval time.
	ErrInsufficientPoints = errors.New("insufficient available points")

	// ErrRequestAlreadyResolved is returned when resolving a request that is
	// no longer pending. This is a workflow integrity violation, not an
	// idempotent no-op.
	ErrRequestAlreadyResolved = errors.New("request already resolved")

	// ErrRequestNotFound is returned when a request id does not exist on the
	// learner's card.
	ErrRequestNotFound = errors.New("request not found")

	// ErrRedemptionNotFound is returned when a redemption id is unknown.
	ErrRedemptionNotFound = errors.New("redemption not found")

	// ErrAlreadyFulfilled is returned when fulfilling a fulfilled redemption.
	ErrAlreadyFulfilled = errors.New("redemption already fulfilled")

	// ErrCardNotFound is returned when no card exists for a learner.
	ErrCardNotFound = errors.New("reward card not found")

	// ErrRewardNotFound is returned for a reward id missing from the catalog.
	// A missing id is a configuration error, detected at lookup.
	ErrRewardNotFound = errors.New("reward not found in catalog")

	// ErrAchievementUnknown is returned for an achievement id missing from
	// the catalog.
	ErrAchievementUnknown = errors.New("achievement not found in catalog")

	// ErrChallengeNotFound is returned for an unknown daily challenge id.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrRemoteUnavailable is returned when the remote completion API cannot
	// be reached after the retry budget is exhausted.
	ErrRemoteUnavailable = errors.New("remote completion API unavailable")

	// ErrSchemaVersion is returned when a persisted card blob carries a
	// schema version newer than this build understands.
	ErrSchemaVersion = errors.New("unsupported card schema version")

	// ErrNegativeAward is returned when a point award would be negative.
	// TotalPoints is monotone; deductions go through redemptions only.
	ErrNegativeAward = errors.New("point award must be non-negative")

	// ErrIntegrity is returned when card state violates a ledger invariant.
	ErrIntegrity = errors.New("card integrity violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError provides details about a points shortage.
type InsufficientPointsError struct {
	LearnerID LearnerID
	Available int
	Required  int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %d, required %d, shortfall %d",
		e.Available, e.Required, e.Required-e.Available)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// DuplicateCompletionError identifies which activity was already credited.
type DuplicateCompletionError struct {
	LearnerID  LearnerID
	ActivityID ActivityID
}

func (e *DuplicateCompletionError) Error() string {
	return fmt.Sprintf("activity %s already completed by %s", e.ActivityID, e.LearnerID)
}

func (e *DuplicateCompletionError) Unwrap() error { return ErrDuplicateCompletion }

// RequestStateError reports an invalid request transition.
type RequestStateError struct {
	RequestID RequestID
	Status    RequestStatus
}

func (e *RequestStateError) Error() string {
	return fmt.Sprintf("request %s already resolved (status: %s)", e.RequestID, e.Status)
}

func (e *RequestStateError) Unwrap() error { return ErrRequestAlreadyResolved }

// IntegrityError describes which invariant a card violated.
type IntegrityError struct {
	LearnerID LearnerID
	Detail    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("card integrity violation for %s: %s", e.LearnerID, e.Detail)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsBusinessRejection returns true for expected business-rule conditions that
// callers should branch on rather than treat as faults.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrDuplicateCompletion) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrRequestAlreadyResolved) ||
		errors.Is(err, ErrAlreadyFulfilled)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCardNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrRedemptionNotFound) ||
		errors.Is(err, ErrRewardNotFound) ||
		errors.Is(err, ErrAchievementUnknown) ||
		errors.Is(err, ErrChallengeNotFound)
}
