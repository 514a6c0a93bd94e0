/*
Package engine orchestrates the progress ledger: completion recording,
achievement evaluation, daily challenges, and the redemption workflow.

PURPOSE:
  The Engine is the single mutation path for learner progress. It composes
  the pure transitions in the ledger package with persistence and the
  best-effort remote write, and guarantees the concurrency model:

    ONE LOGICAL WRITER PER LEARNER. Every mutating operation for a learner
    runs to completion (ledger update -> streak -> achievement evaluation ->
    persistence) before the next one is accepted. Operations on different
    learners proceed in parallel.

ARCHITECTURE:
  Engine holds:
  - Store:   explicit repository keyed by learner id (no global state)
  - Catalog: closed, validated content mapping
  - Remote:  optional best-effort completion API (nil = offline)
  - cards:   LRU read cache in front of the store
  - locks:   per-learner mutexes implementing the single-writer rule

READ PATH:
  Accessors return deep copies. Level and progress are derived from
  TotalPoints on every read, never cached separately.

SEE ALSO:
  - recorder.go: Point composition and completion recording
  - achievements.go: Catalog-driven unlock evaluation
  - challenges.go: Deterministic daily challenges
  - redemption.go: Request/approval state machine
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"

	"github.com/lumikids/progress-engine/catalog"
	"github.com/lumikids/progress-engine/ledger"
)

// cardCacheSize bounds the LRU of decoded cards. Cards are small; this is
// generous for a family-sized deployment and harmless for a single learner.
const cardCacheSize = 256

// Engine is the single mutation path for learner progress.
type Engine struct {
	store   ledger.Store
	catalog *catalog.Catalog
	remote  ledger.RemoteAPI // may be nil: local-only mode

	// RemoteRetries bounds best-effort remote write attempts per completion.
	RemoteRetries int
	// RetryBackoff is the base delay between remote attempts (linear).
	RetryBackoff time.Duration

	now func() time.Time

	cards *lru.Cache

	mu    sync.Mutex
	locks map[ledger.LearnerID]*sync.Mutex
}

// New creates an engine. remote may be nil for local-only operation.
func New(store ledger.Store, cat *catalog.Catalog, remote ledger.RemoteAPI) *Engine {
	cache, _ := lru.New(cardCacheSize)
	return &Engine{
		store:         store,
		catalog:       cat,
		remote:        remote,
		RemoteRetries: 3,
		RetryBackoff:  200 * time.Millisecond,
		now:           time.Now,
		cards:         cache,
		locks:         make(map[ledger.LearnerID]*sync.Mutex),
	}
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Catalog exposes the content catalog to the API layer.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// =============================================================================
// PER-LEARNER SERIALIZATION
// =============================================================================

// lockLearner acquires the learner's mutation lock, creating it on first use.
func (e *Engine) lockLearner(learnerID ledger.LearnerID) *sync.Mutex {
	e.mu.Lock()
	l, ok := e.locks[learnerID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[learnerID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l
}

// =============================================================================
// CARD ACCESS
// =============================================================================

// loadCard returns the learner's card from cache or store.
// Callers must hold the learner lock when mutating the result.
func (e *Engine) loadCard(ctx context.Context, learnerID ledger.LearnerID) (*ledger.RewardCard, error) {
	if cached, ok := e.cards.Get(learnerID); ok {
		return cached.(*ledger.RewardCard), nil
	}
	card, err := e.store.GetCard(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	e.cards.Add(learnerID, card)
	return card, nil
}

// loadOrCreateCard returns a mutable copy of the learner's card, creating an
// empty one if none exists yet. Mutating operations always work on a copy:
// the cache keeps the last persisted state until persistCard succeeds, so a
// failed write never leaves a dirty card behind.
func (e *Engine) loadOrCreateCard(ctx context.Context, learnerID ledger.LearnerID) (*ledger.RewardCard, error) {
	card, err := e.loadCard(ctx, learnerID)
	if errors.Is(err, ledger.ErrCardNotFound) {
		return ledger.NewRewardCard(learnerID, e.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return card.Clone(), nil
}

// loadCardForUpdate is loadOrCreateCard without the create: missing cards
// stay ErrCardNotFound.
func (e *Engine) loadCardForUpdate(ctx context.Context, learnerID ledger.LearnerID) (*ledger.RewardCard, error) {
	card, err := e.loadCard(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return card.Clone(), nil
}

// persistCard writes the card and refreshes the cache. The last step of
// every logical transaction. On failure the cache still holds the last
// persisted state, so readers never observe the unwritten mutation.
func (e *Engine) persistCard(ctx context.Context, card *ledger.RewardCard) error {
	if err := e.store.PutCard(ctx, card); err != nil {
		return err
	}
	e.cards.Add(card.LearnerID, card)
	return nil
}

// commitCompletion lands the completion record and the card as one store
// transaction, then refreshes the cache. Pairing the writes keeps the
// completion log and the point balance in lockstep across a crash: neither
// a credited-but-unrecorded nor a recorded-but-uncredited state can persist.
func (e *Engine) commitCompletion(ctx context.Context, c ledger.ActivityCompletion, card *ledger.RewardCard) error {
	if err := e.store.CommitCompletion(ctx, c, card); err != nil {
		return err
	}
	e.cards.Add(card.LearnerID, card)
	return nil
}

// commitChallenge is commitCompletion's counterpart for challenge credits.
func (e *Engine) commitChallenge(ctx context.Context, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID, card *ledger.RewardCard) error {
	if err := e.store.CommitChallenge(ctx, learnerID, date, id, card); err != nil {
		return err
	}
	e.cards.Add(card.LearnerID, card)
	return nil
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// Card returns a copy of the learner's card.
func (e *Engine) Card(ctx context.Context, learnerID ledger.LearnerID) (*ledger.RewardCard, error) {
	card, err := e.loadCard(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	return card.Clone(), nil
}

// AvailablePoints returns the learner's spendable balance (0 for a learner
// with no card yet).
func (e *Engine) AvailablePoints(ctx context.Context, learnerID ledger.LearnerID) (int, error) {
	card, err := e.loadCard(ctx, learnerID)
	if errors.Is(err, ledger.ErrCardNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return card.AvailablePoints, nil
}

// CurrentLevel derives the learner's level tier.
func (e *Engine) CurrentLevel(ctx context.Context, learnerID ledger.LearnerID) (ledger.Level, error) {
	card, err := e.loadCard(ctx, learnerID)
	if errors.Is(err, ledger.ErrCardNotFound) {
		return ledger.LevelBronze, nil
	}
	if err != nil {
		return "", err
	}
	return ledger.LevelFor(card.TotalPoints), nil
}

// ProgressToNextLevel derives position within the current level band.
func (e *Engine) ProgressToNextLevel(ctx context.Context, learnerID ledger.LearnerID) (ledger.LevelProgress, error) {
	card, err := e.loadCard(ctx, learnerID)
	if errors.Is(err, ledger.ErrCardNotFound) {
		return ledger.LevelProgress{Level: ledger.LevelBronze, Required: 500, Percentage: decimal.Zero}, nil
	}
	if err != nil {
		return ledger.LevelProgress{}, err
	}
	return ledger.Progress(card.TotalPoints), nil
}

// RedemptionHistory returns the append-only redemption audit trail.
func (e *Engine) RedemptionHistory(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.RewardRedemption, error) {
	card, err := e.loadCard(ctx, learnerID)
	if errors.Is(err, ledger.ErrCardNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return card.Clone().RedemptionHistory, nil
}

// Completions returns the learner's recorded completions, oldest first.
func (e *Engine) Completions(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.ActivityCompletion, error) {
	return e.store.Completions(ctx, learnerID)
}

// =============================================================================
// RESET
// =============================================================================

// ResetProgress clears local progress for a learner and forwards the reset
// to the remote service when one is configured. Remote failure does not
// undo the local reset; it is reported so the caller can retry.
func (e *Engine) ResetProgress(ctx context.Context, learnerID ledger.LearnerID) error {
	lock := e.lockLearner(learnerID)
	defer lock.Unlock()

	if err := e.store.RemoveCard(ctx, learnerID); err != nil {
		return err
	}
	e.cards.Remove(learnerID)

	if e.remote == nil {
		return nil
	}
	if err := e.remote.ResetProgress(ctx, learnerID); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrRemoteUnavailable, err)
	}
	return nil
}
