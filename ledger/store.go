/*
store.go - Persistence and remote collaborator interfaces

PURPOSE:
  Defines the boundary between the domain logic and its collaborators.
  The Store is an explicit repository keyed by LearnerID - no ambient global
  state - so tests isolate learners and multi-tenant use is safe.

KEY INTERFACES:
  Store:     Local persistence for cards, completions, challenges, snapshots
  RemoteAPI: The remote completion-recording service (best-effort)

WRITE DISCIPLINE:
  A mutating engine operation finishes with exactly one store write as its
  last step: PutCard alone, or an atomic commit pairing a completion record
  with the card save. In-memory state is recomputed from the last persisted
  snapshot on restart, so a crash between mutation and write can never
  leave a worse-than-before state.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite with versioned JSON blobs

SEE ALSO:
  - codec.go: Versioned card blob encoding shared by implementations
  - syncer/remote.go: HTTP RemoteAPI client with bounded retries
*/
package ledger

import "context"

// =============================================================================
// STORE - Local persistence, namespaced per learner
// =============================================================================

// Store persists per-learner progress. All methods are safe for concurrent
// use; the engine additionally serializes mutations per learner.
type Store interface {
	// GetCard returns the learner's card, or ErrCardNotFound.
	GetCard(ctx context.Context, learnerID LearnerID) (*RewardCard, error)

	// PutCard saves the learner's card. Last step of a logical transaction.
	PutCard(ctx context.Context, card *RewardCard) error

	// RemoveCard deletes a learner's card and completions. Used by reset.
	RemoveCard(ctx context.Context, learnerID LearnerID) error

	// Completions returns all recorded completions, oldest first.
	Completions(ctx context.Context, learnerID LearnerID) ([]ActivityCompletion, error)

	// HasCompletion checks the (learner, activity) idempotence key.
	HasCompletion(ctx context.Context, learnerID LearnerID, activityID ActivityID) (bool, error)

	// AppendCompletion records a completion. Append-only; returns
	// ErrDuplicateCompletion if the activity was already recorded.
	AppendCompletion(ctx context.Context, c ActivityCompletion) error

	// MarkSynced flags a completion as successfully written remotely.
	MarkSynced(ctx context.Context, learnerID LearnerID, activityID ActivityID) error

	// CommitCompletion appends a completion and saves the card in one
	// transaction. Either both writes land or neither does: a crash between
	// them can never strand a recorded completion without its credit.
	CommitCompletion(ctx context.Context, c ActivityCompletion, card *RewardCard) error

	// ChallengesFor returns the challenge set generated for a date
	// (empty when the date has not been generated yet).
	ChallengesFor(ctx context.Context, date Day) ([]DailyChallenge, error)

	// PutChallenges stores the generated set for a date.
	PutChallenges(ctx context.Context, date Day, challenges []DailyChallenge) error

	// CompletedChallenges returns the ids a learner completed on a date.
	CompletedChallenges(ctx context.Context, learnerID LearnerID, date Day) (map[ChallengeID]bool, error)

	// MarkChallengeCompleted records a learner's challenge completion.
	// Idempotent at the store level.
	MarkChallengeCompleted(ctx context.Context, learnerID LearnerID, date Day, id ChallengeID) error

	// CommitChallenge marks a challenge completed and saves the card in one
	// transaction, mirroring CommitCompletion for challenge credits.
	CommitChallenge(ctx context.Context, learnerID LearnerID, date Day, id ChallengeID, card *RewardCard) error

	// Snapshots returns backup snapshots for a learner, oldest first.
	Snapshots(ctx context.Context, learnerID LearnerID) ([]BackupSnapshot, error)

	// PutSnapshot stores a backup snapshot.
	PutSnapshot(ctx context.Context, snap BackupSnapshot) error

	// RemoveSnapshot deletes one snapshot (FIFO eviction).
	RemoveSnapshot(ctx context.Context, learnerID LearnerID, snapshotID string) error
}

// BackupSnapshot is an opportunistic local copy of a learner's remote
// completions, taken before a session ends. Best-effort cache, bounded per
// learner with FIFO eviction - never a correctness-critical path.
type BackupSnapshot struct {
	ID          string
	LearnerID   LearnerID
	TakenAt     string // RFC3339
	Completions []ActivityCompletion
}

// =============================================================================
// REMOTE API - The completion-recording service (interface boundary only)
// =============================================================================

// RemoteAPI is the remote completion service. Every call may fail; the
// engine degrades to local-only operation when it does.
type RemoteAPI interface {
	// Completions fetches all completions recorded remotely for a learner.
	Completions(ctx context.Context, learnerID LearnerID) ([]ActivityCompletion, error)

	// RecordCompletion writes one completion remotely.
	RecordCompletion(ctx context.Context, learnerID LearnerID, c ActivityCompletion) error

	// ResetProgress clears all remote progress for a learner.
	ResetProgress(ctx context.Context, learnerID LearnerID) error
}
