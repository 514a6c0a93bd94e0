package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumikids/progress-engine/ledger"
	"github.com/lumikids/progress-engine/ledger/store"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func completion(learner, activity string, at time.Time) ledger.ActivityCompletion {
	return ledger.ActivityCompletion{
		LearnerID:   ledger.LearnerID(learner),
		ActivityID:  ledger.ActivityID(activity),
		CompletedAt: at,
		Score:       85,
		Category:    "math",
	}
}

func TestMemory_CardRoundTrip(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	if _, err := m.GetCard(ctx, "kid-1"); !errors.Is(err, ledger.ErrCardNotFound) {
		t.Fatalf("expected ErrCardNotFound, got %v", err)
	}

	card := ledger.NewRewardCard("kid-1", now)
	if err := card.Award(70, now); err != nil {
		t.Fatal(err)
	}
	if err := m.PutCard(ctx, card); err != nil {
		t.Fatalf("PutCard failed: %v", err)
	}

	got, err := m.GetCard(ctx, "kid-1")
	if err != nil {
		t.Fatalf("GetCard failed: %v", err)
	}
	if got.TotalPoints != 70 {
		t.Errorf("expected 70 points, got %d", got.TotalPoints)
	}

	// The store hands back an independent copy: mutating it must not leak.
	got.TotalPoints = 999
	again, _ := m.GetCard(ctx, "kid-1")
	if again.TotalPoints != 70 {
		t.Error("store copy was mutated through a returned card")
	}
}

func TestMemory_CompletionIdempotenceKey(t *testing.T) {
	// GIVEN: A recorded completion
	// WHEN: Appending the same (learner, activity) again
	// THEN: ErrDuplicateCompletion; a different learner is unaffected

	m := store.NewMemory()
	ctx := context.Background()

	if err := m.AppendCompletion(ctx, completion("kid-1", "act-1", now)); err != nil {
		t.Fatal(err)
	}
	err := m.AppendCompletion(ctx, completion("kid-1", "act-1", now.Add(time.Hour)))
	if !errors.Is(err, ledger.ErrDuplicateCompletion) {
		t.Fatalf("expected ErrDuplicateCompletion, got %v", err)
	}
	if err := m.AppendCompletion(ctx, completion("kid-2", "act-1", now)); err != nil {
		t.Errorf("same activity for another learner must be fine: %v", err)
	}

	has, err := m.HasCompletion(ctx, "kid-1", "act-1")
	if err != nil || !has {
		t.Errorf("HasCompletion = %v, %v", has, err)
	}
	has, _ = m.HasCompletion(ctx, "kid-1", "act-2")
	if has {
		t.Error("unknown activity reported as completed")
	}
}

func TestMemory_CompletionsOrderedByTime(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	// Insert out of order.
	for _, c := range []ledger.ActivityCompletion{
		completion("kid-1", "act-3", now.Add(2*time.Hour)),
		completion("kid-1", "act-1", now),
		completion("kid-1", "act-2", now.Add(time.Hour)),
	} {
		if err := m.AppendCompletion(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.Completions(ctx, "kid-1")
	if err != nil {
		t.Fatal(err)
	}
	want := []ledger.ActivityID{"act-1", "act-2", "act-3"}
	for i, id := range want {
		if got[i].ActivityID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ActivityID, id)
		}
	}
}

func TestMemory_CommitCompletionIsAtomic(t *testing.T) {
	// GIVEN: A card already credited for act-1
	// WHEN: Committing a duplicate completion paired with an inflated card
	// THEN: The rejected insert leaves the stored card untouched

	m := store.NewMemory()
	ctx := context.Background()

	card := ledger.NewRewardCard("kid-1", now)
	if err := card.Award(70, now); err != nil {
		t.Fatal(err)
	}
	if err := m.CommitCompletion(ctx, completion("kid-1", "act-1", now), card); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	inflated := card.Clone()
	if err := inflated.Award(999, now); err != nil {
		t.Fatal(err)
	}
	err := m.CommitCompletion(ctx, completion("kid-1", "act-1", now.Add(time.Hour)), inflated)
	if !errors.Is(err, ledger.ErrDuplicateCompletion) {
		t.Fatalf("expected ErrDuplicateCompletion, got %v", err)
	}

	got, err := m.GetCard(ctx, "kid-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalPoints != 70 {
		t.Errorf("rejected commit leaked card state: %d points", got.TotalPoints)
	}
	completions, _ := m.Completions(ctx, "kid-1")
	if len(completions) != 1 {
		t.Errorf("expected 1 completion, got %d", len(completions))
	}
}

func TestMemory_CommitChallengeStoresBoth(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	date := ledger.NewDay(2025, time.March, 10)

	card := ledger.NewRewardCard("kid-1", now)
	if err := card.Award(20, now); err != nil {
		t.Fatal(err)
	}
	if err := m.CommitChallenge(ctx, "kid-1", date, "2025-03-10-t1", card); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	completed, _ := m.CompletedChallenges(ctx, "kid-1", date)
	if !completed["2025-03-10-t1"] {
		t.Error("challenge mark missing")
	}
	got, err := m.GetCard(ctx, "kid-1")
	if err != nil || got.TotalPoints != 20 {
		t.Errorf("card missing after commit: %v, %v", got, err)
	}
}

func TestMemory_MarkSynced(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	if err := m.AppendCompletion(ctx, completion("kid-1", "act-1", now)); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkSynced(ctx, "kid-1", "act-1"); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	got, _ := m.Completions(ctx, "kid-1")
	if !got[0].Synced {
		t.Error("completion not marked synced")
	}

	// Best-effort: marking an unknown activity is a no-op.
	if err := m.MarkSynced(ctx, "kid-1", "unknown"); err != nil {
		t.Errorf("marking unknown activity must not error: %v", err)
	}
}

func TestMemory_RemoveCardClearsCompletions(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	card := ledger.NewRewardCard("kid-1", now)
	if err := m.PutCard(ctx, card); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendCompletion(ctx, completion("kid-1", "act-1", now)); err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveCard(ctx, "kid-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetCard(ctx, "kid-1"); !errors.Is(err, ledger.ErrCardNotFound) {
		t.Error("card still present after remove")
	}
	got, _ := m.Completions(ctx, "kid-1")
	if len(got) != 0 {
		t.Error("completions still present after remove")
	}
}

func TestMemory_Challenges(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	date := ledger.NewDay(2025, time.March, 10)

	got, err := m.ChallengesFor(ctx, date)
	if err != nil || len(got) != 0 {
		t.Fatalf("ungenerated date should be empty: %v, %v", got, err)
	}

	set := []ledger.DailyChallenge{
		{ID: "2025-03-10-t1", Date: date, TemplateIndex: 1, Title: "A", BonusPoints: 20},
		{ID: "2025-03-10-t4", Date: date, TemplateIndex: 4, Title: "B", BonusPoints: 40},
	}
	if err := m.PutChallenges(ctx, date, set); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ChallengesFor(ctx, date)
	if len(got) != 2 || got[0].ID != "2025-03-10-t1" {
		t.Errorf("challenge set mismatch: %+v", got)
	}

	if err := m.MarkChallengeCompleted(ctx, "kid-1", date, "2025-03-10-t1"); err != nil {
		t.Fatal(err)
	}
	// Repeat mark is idempotent.
	if err := m.MarkChallengeCompleted(ctx, "kid-1", date, "2025-03-10-t1"); err != nil {
		t.Fatal(err)
	}
	completed, _ := m.CompletedChallenges(ctx, "kid-1", date)
	if !completed["2025-03-10-t1"] || completed["2025-03-10-t4"] {
		t.Errorf("completed set mismatch: %v", completed)
	}
}

func TestMemory_Snapshots(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	for _, id := range []string{"snap-1", "snap-2", "snap-3"} {
		if err := m.PutSnapshot(ctx, ledger.BackupSnapshot{
			ID: id, LearnerID: "kid-1", TakenAt: now.Format(time.RFC3339),
		}); err != nil {
			t.Fatal(err)
		}
	}

	snaps, err := m.Snapshots(ctx, "kid-1")
	if err != nil || len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d (%v)", len(snaps), err)
	}

	if err := m.RemoveSnapshot(ctx, "kid-1", "snap-1"); err != nil {
		t.Fatal(err)
	}
	snaps, _ = m.Snapshots(ctx, "kid-1")
	if len(snaps) != 2 || snaps[0].ID != "snap-2" {
		t.Errorf("snapshot eviction wrong: %+v", snaps)
	}
}
