/*
backup.go - Bounded local snapshots of remote completions

PURPOSE:
  Before a session ends, the account's remote completion set is snapshotted
  into local storage so the next offline session starts from recent data.
  This is a best-effort cache, never a correctness-critical path: the
  reconciliation protocol works from live data.

RETENTION:
  At most MaxSnapshots per identity. Eviction is FIFO - the oldest snapshot
  goes first, regardless of access.
*/
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumikids/progress-engine/ledger"
)

// DefaultMaxSnapshots is the per-identity retention bound.
const DefaultMaxSnapshots = 5

// Backup snapshots remote completions into local storage.
type Backup struct {
	Store  ledger.Store
	Remote ledger.RemoteAPI

	// MaxSnapshots bounds retention per identity (0 = DefaultMaxSnapshots).
	MaxSnapshots int

	now func() time.Time
}

// NewBackup wires a backup helper.
func NewBackup(store ledger.Store, remote ledger.RemoteAPI) *Backup {
	return &Backup{Store: store, Remote: remote, MaxSnapshots: DefaultMaxSnapshots, now: time.Now}
}

// Run takes one snapshot of the learner's remote completions and evicts the
// oldest snapshots beyond the retention bound.
func (b *Backup) Run(ctx context.Context, learnerID ledger.LearnerID) (*ledger.BackupSnapshot, error) {
	completions, err := b.Remote.Completions(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("backup fetch: %w", err)
	}

	snap := ledger.BackupSnapshot{
		ID:          uuid.NewString(),
		LearnerID:   learnerID,
		TakenAt:     b.now().UTC().Format(time.RFC3339),
		Completions: completions,
	}
	if err := b.Store.PutSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("backup store: %w", err)
	}

	if err := b.evict(ctx, learnerID); err != nil {
		return nil, err
	}
	return &snap, nil
}

// evict drops oldest-first until the retention bound holds.
func (b *Backup) evict(ctx context.Context, learnerID ledger.LearnerID) error {
	limit := b.MaxSnapshots
	if limit <= 0 {
		limit = DefaultMaxSnapshots
	}

	snaps, err := b.Store.Snapshots(ctx, learnerID)
	if err != nil {
		return err
	}
	for len(snaps) > limit {
		oldest := snaps[0]
		if err := b.Store.RemoveSnapshot(ctx, learnerID, oldest.ID); err != nil {
			return err
		}
		snaps = snaps[1:]
	}
	return nil
}
