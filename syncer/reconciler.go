/*
reconciler.go - Guest-to-account progress reconciliation

PURPOSE:
  When a guest authenticates, progress recorded under the guest identity
  must merge into the account without double-crediting and without loss.
  The protocol is replay, not transfer:

  1. Fetch the activity ids already recorded remotely for the account
  2. Fetch the completions recorded locally for the guest
  3. For each local completion NOT in the remote set, replay it through the
     completion recorder AGAINST THE ACCOUNT identity, preserving the
     original score/timestamp/category
  4. Push the account's own unsynced completions to the remote - the ones
     whose best-effort write failed at recording time have no other path
     back to the remote

  The recorder's per-activity idempotence gate (keyed by the account id) is
  the sole duplicate guard. That makes reconciliation itself idempotent: a
  rerun replays nothing new and reports SyncedCount 0.

FAILURE ISOLATION:
  A failed replay is counted and skipped; it never aborts the batch. Only
  the initial remote fetch is fatal - without the remote set there is no
  safe diff to replay.

SEE ALSO:
  - engine/recorder.go: The idempotence gate this protocol leans on
*/
package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/lumikids/progress-engine/engine"
	"github.com/lumikids/progress-engine/ledger"
)

// Reconciler merges guest progress into an authenticated account.
// It is the only component permitted to bridge two learner identities.
type Reconciler struct {
	Engine *engine.Engine
	Store  ledger.Store
	Remote ledger.RemoteAPI
}

// NewReconciler wires a reconciler over the engine's store and remote.
func NewReconciler(eng *engine.Engine, store ledger.Store, remote ledger.RemoteAPI) *Reconciler {
	return &Reconciler{Engine: eng, Store: store, Remote: remote}
}

// Reconcile merges completions recorded under guestID into authenticatedID.
// Runs once per login transition, or on manual trigger; safe to rerun.
func (r *Reconciler) Reconcile(ctx context.Context, guestID, authenticatedID ledger.LearnerID) (ledger.ReconcileResult, error) {
	if guestID == authenticatedID {
		return ledger.ReconcileResult{}, fmt.Errorf("cannot reconcile an identity with itself")
	}

	// Without the remote set there is no safe difference to compute.
	remote, err := r.Remote.Completions(ctx, authenticatedID)
	if err != nil {
		return ledger.ReconcileResult{}, fmt.Errorf("fetch remote completions: %w", err)
	}
	remoteSet := make(map[ledger.ActivityID]bool, len(remote))
	for i := range remote {
		remoteSet[remote[i].ActivityID] = true
	}

	local, err := r.Store.Completions(ctx, guestID)
	if err != nil {
		return ledger.ReconcileResult{}, fmt.Errorf("load local completions: %w", err)
	}

	var result ledger.ReconcileResult
	for _, c := range local {
		if remoteSet[c.ActivityID] {
			continue
		}

		// Replay against the account identity, preserving the original
		// event. The recorder recomputes points in account context and
		// its duplicate gate absorbs reruns.
		res, err := r.Engine.ReplayCompletion(ctx, engine.CompletionInput{
			LearnerID:        authenticatedID,
			ActivityID:       c.ActivityID,
			Score:            c.Score,
			TimeSpentSeconds: c.TimeSpentSeconds,
			Category:         c.Category,
		}, c.CompletedAt, true)
		if err != nil {
			// Per-item isolation: count, log, continue.
			log.Printf("sync: replay of %s failed: %v", c.ActivityID, err)
			result.FailedCount++
			continue
		}
		if res.Accepted {
			result.SyncedCount++
		}
	}

	r.flushUnsynced(ctx, authenticatedID, remoteSet, &result)

	return result, nil
}

// flushUnsynced pushes the account's own completions whose best-effort
// remote write never landed. Failures stay unsynced for the next run.
func (r *Reconciler) flushUnsynced(ctx context.Context, learnerID ledger.LearnerID, remoteSet map[ledger.ActivityID]bool, result *ledger.ReconcileResult) {
	local, err := r.Store.Completions(ctx, learnerID)
	if err != nil {
		log.Printf("sync: load %s completions for flush: %v", learnerID, err)
		return
	}

	for _, c := range local {
		if c.Synced {
			continue
		}
		if remoteSet[c.ActivityID] {
			// Landed remotely on an earlier attempt; only the flag is stale.
			if err := r.Store.MarkSynced(ctx, learnerID, c.ActivityID); err != nil {
				log.Printf("sync: mark %s synced: %v", c.ActivityID, err)
			}
			continue
		}
		if err := r.Remote.RecordCompletion(ctx, learnerID, c); err != nil {
			log.Printf("sync: push of %s failed: %v", c.ActivityID, err)
			result.FailedCount++
			continue
		}
		if err := r.Store.MarkSynced(ctx, learnerID, c.ActivityID); err != nil {
			log.Printf("sync: mark %s synced: %v", c.ActivityID, err)
			continue
		}
		result.FlushedCount++
	}
}
