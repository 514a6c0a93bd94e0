package syncer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumikids/progress-engine/ledger/store"
	"github.com/lumikids/progress-engine/syncer"
)

func TestBackup_SnapshotsRemoteCompletions(t *testing.T) {
	// GIVEN: Two completions recorded remotely for the account
	// WHEN: Taking a backup
	// THEN: The snapshot holds them and is stored locally

	mem := store.NewMemory()
	remote := newFakeRemote()
	remote.seed("user-1", "act-a", "act-b")

	b := syncer.NewBackup(mem, remote)
	snap, err := b.Run(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if snap.ID == "" || snap.LearnerID != "user-1" {
		t.Errorf("malformed snapshot: %+v", snap)
	}
	if len(snap.Completions) != 2 {
		t.Errorf("expected 2 completions, got %d", len(snap.Completions))
	}
	if _, err := time.Parse(time.RFC3339, snap.TakenAt); err != nil {
		t.Errorf("TakenAt not RFC3339: %q", snap.TakenAt)
	}

	stored, _ := mem.Snapshots(context.Background(), "user-1")
	if len(stored) != 1 || stored[0].ID != snap.ID {
		t.Errorf("snapshot not stored: %+v", stored)
	}
}

func TestBackup_RetentionEvictsOldestFirst(t *testing.T) {
	mem := store.NewMemory()
	remote := newFakeRemote()
	remote.seed("user-1", "act-a")

	b := syncer.NewBackup(mem, remote)
	b.MaxSnapshots = 3

	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		snap, err := b.Run(ctx, "user-1")
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		ids = append(ids, snap.ID)
	}

	stored, _ := mem.Snapshots(ctx, "user-1")
	if len(stored) != 3 {
		t.Fatalf("expected retention bound 3, got %d snapshots", len(stored))
	}
	// FIFO: the two oldest are gone, the three newest remain in order.
	for i, snap := range stored {
		if snap.ID != ids[i+2] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i+2], snap.ID)
		}
	}
}

func TestBackup_RetentionIsPerIdentity(t *testing.T) {
	mem := store.NewMemory()
	remote := newFakeRemote()
	remote.seed("user-1", "act-a")
	remote.seed("user-2", "act-b")

	b := syncer.NewBackup(mem, remote)
	b.MaxSnapshots = 2

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := b.Run(ctx, "user-1"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := b.Run(ctx, "user-2"); err != nil {
		t.Fatal(err)
	}

	one, _ := mem.Snapshots(ctx, "user-1")
	two, _ := mem.Snapshots(ctx, "user-2")
	if len(one) != 2 || len(two) != 1 {
		t.Errorf("expected 2 and 1 snapshots, got %d and %d", len(one), len(two))
	}
}

func TestBackup_FetchFailureStoresNothing(t *testing.T) {
	mem := store.NewMemory()
	remote := newFakeRemote()
	remote.fetchErr = errors.New("timeout")

	b := syncer.NewBackup(mem, remote)
	if _, err := b.Run(context.Background(), "user-1"); err == nil {
		t.Fatal("expected fetch error to propagate")
	}

	stored, _ := mem.Snapshots(context.Background(), "user-1")
	if len(stored) != 0 {
		t.Errorf("failed backup must store nothing, got %d", len(stored))
	}
}
