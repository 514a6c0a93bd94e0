// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lumikids/progress-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	cards       map[ledger.LearnerID][]byte // versioned blobs, like a real KV store
	completions map[ledger.LearnerID][]ledger.ActivityCompletion
	challenges  map[ledger.Day][]ledger.DailyChallenge
	completed   map[challengeKey]map[ledger.ChallengeID]bool
	snapshots   map[ledger.LearnerID][]ledger.BackupSnapshot
}

type challengeKey struct {
	LearnerID ledger.LearnerID
	Date      ledger.Day
}

func NewMemory() *Memory {
	return &Memory{
		cards:       make(map[ledger.LearnerID][]byte),
		completions: make(map[ledger.LearnerID][]ledger.ActivityCompletion),
		challenges:  make(map[ledger.Day][]ledger.DailyChallenge),
		completed:   make(map[challengeKey]map[ledger.ChallengeID]bool),
		snapshots:   make(map[ledger.LearnerID][]ledger.BackupSnapshot),
	}
}

var _ ledger.Store = (*Memory)(nil)

// =============================================================================
// CARDS
// =============================================================================

func (m *Memory) GetCard(_ context.Context, learnerID ledger.LearnerID) (*ledger.RewardCard, error) {
	m.mu.RLock()
	blob, ok := m.cards[learnerID]
	m.mu.RUnlock()
	if !ok {
		return nil, ledger.ErrCardNotFound
	}
	return ledger.DecodeCard(blob)
}

func (m *Memory) PutCard(_ context.Context, card *ledger.RewardCard) error {
	blob, err := ledger.EncodeCard(card)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[card.LearnerID] = blob
	return nil
}

func (m *Memory) RemoveCard(_ context.Context, learnerID ledger.LearnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cards, learnerID)
	delete(m.completions, learnerID)
	for k := range m.completed {
		if k.LearnerID == learnerID {
			delete(m.completed, k)
		}
	}
	return nil
}

// =============================================================================
// COMPLETIONS
// =============================================================================

func (m *Memory) Completions(_ context.Context, learnerID ledger.LearnerID) ([]ledger.ActivityCompletion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.ActivityCompletion, len(m.completions[learnerID]))
	copy(result, m.completions[learnerID])
	return result, nil
}

func (m *Memory) HasCompletion(_ context.Context, learnerID ledger.LearnerID, activityID ledger.ActivityID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.completions[learnerID] {
		if c.ActivityID == activityID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) AppendCompletion(_ context.Context, c ledger.ActivityCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(c)
}

// appendLocked inserts a completion; callers hold m.mu.
func (m *Memory) appendLocked(c ledger.ActivityCompletion) error {
	for _, existing := range m.completions[c.LearnerID] {
		if existing.ActivityID == c.ActivityID {
			return &ledger.DuplicateCompletionError{LearnerID: c.LearnerID, ActivityID: c.ActivityID}
		}
	}

	// Keep the slice ordered by completion time: binary search for the
	// insertion point, then shift.
	list := m.completions[c.LearnerID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].CompletedAt.After(c.CompletedAt)
	})
	list = append(list, ledger.ActivityCompletion{})
	copy(list[i+1:], list[i:])
	list[i] = c
	m.completions[c.LearnerID] = list
	return nil
}

// CommitCompletion lands the completion and the card blob under one lock
// acquisition: a failed insert leaves the card untouched.
func (m *Memory) CommitCompletion(_ context.Context, c ledger.ActivityCompletion, card *ledger.RewardCard) error {
	blob, err := ledger.EncodeCard(card)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendLocked(c); err != nil {
		return err
	}
	m.cards[card.LearnerID] = blob
	return nil
}

func (m *Memory) MarkSynced(_ context.Context, learnerID ledger.LearnerID, activityID ledger.ActivityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.completions[learnerID] {
		if m.completions[learnerID][i].ActivityID == activityID {
			m.completions[learnerID][i].Synced = true
			break
		}
	}
	return nil
}

// =============================================================================
// DAILY CHALLENGES
// =============================================================================

func (m *Memory) ChallengesFor(_ context.Context, date ledger.Day) ([]ledger.DailyChallenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.DailyChallenge, len(m.challenges[date]))
	copy(result, m.challenges[date])
	return result, nil
}

func (m *Memory) PutChallenges(_ context.Context, date ledger.Day, challenges []ledger.DailyChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]ledger.DailyChallenge, len(challenges))
	copy(stored, challenges)
	m.challenges[date] = stored
	return nil
}

func (m *Memory) CompletedChallenges(_ context.Context, learnerID ledger.LearnerID, date ledger.Day) (map[ledger.ChallengeID]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[ledger.ChallengeID]bool)
	for id := range m.completed[challengeKey{learnerID, date}] {
		result[id] = true
	}
	return result, nil
}

func (m *Memory) MarkChallengeCompleted(_ context.Context, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := challengeKey{learnerID, date}
	if m.completed[k] == nil {
		m.completed[k] = make(map[ledger.ChallengeID]bool)
	}
	m.completed[k][id] = true
	return nil
}

// CommitChallenge lands the credit mark and the card blob under one lock
// acquisition, mirroring CommitCompletion.
func (m *Memory) CommitChallenge(_ context.Context, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID, card *ledger.RewardCard) error {
	blob, err := ledger.EncodeCard(card)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := challengeKey{learnerID, date}
	if m.completed[k] == nil {
		m.completed[k] = make(map[ledger.ChallengeID]bool)
	}
	m.completed[k][id] = true
	m.cards[card.LearnerID] = blob
	return nil
}

// =============================================================================
// BACKUP SNAPSHOTS
// =============================================================================

func (m *Memory) Snapshots(_ context.Context, learnerID ledger.LearnerID) ([]ledger.BackupSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.BackupSnapshot, len(m.snapshots[learnerID]))
	copy(result, m.snapshots[learnerID])
	return result, nil
}

func (m *Memory) PutSnapshot(_ context.Context, snap ledger.BackupSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[snap.LearnerID] = append(m.snapshots[snap.LearnerID], snap)
	return nil
}

func (m *Memory) RemoveSnapshot(_ context.Context, learnerID ledger.LearnerID, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.snapshots[learnerID]
	for i := range list {
		if list[i].ID == snapshotID {
			m.snapshots[learnerID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}
