package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumikids/progress-engine/catalog"
	"github.com/lumikids/progress-engine/engine"
	"github.com/lumikids/progress-engine/ledger"
	"github.com/lumikids/progress-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var clock = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	eng := engine.New(mem, catalog.Default(), nil)
	eng.SetClock(func() time.Time { return clock })
	return eng, mem
}

func record(t *testing.T, eng *engine.Engine, learner, activity, category string, score int) ledger.CompletionResult {
	t.Helper()
	result, err := eng.RecordCompletion(context.Background(), engine.CompletionInput{
		LearnerID:  ledger.LearnerID(learner),
		ActivityID: ledger.ActivityID(activity),
		Score:      score,
		Category:   category,
	})
	if err != nil {
		t.Fatalf("RecordCompletion(%s) failed: %v", activity, err)
	}
	return result
}

func replayOn(t *testing.T, eng *engine.Engine, learner, activity, category string, score int, at time.Time) ledger.CompletionResult {
	t.Helper()
	result, err := eng.ReplayCompletion(context.Background(), engine.CompletionInput{
		LearnerID:  ledger.LearnerID(learner),
		ActivityID: ledger.ActivityID(activity),
		Score:      score,
		Category:   category,
	}, at, false)
	if err != nil {
		t.Fatalf("ReplayCompletion(%s) failed: %v", activity, err)
	}
	return result
}

// =============================================================================
// POINT COMPOSITION
// =============================================================================

func TestRecordCompletion_FirstPerfectActivity(t *testing.T) {
	// GIVEN: A brand-new learner
	// WHEN: Completing a math activity with a perfect score
	// THEN: 10 base + 20 perfect + 15 first activity + 25 first category = 70,
	//       and the first-steps achievement unlocks for another 25

	eng, _ := newTestEngine(t)
	result := record(t, eng, "kid-1", "act-1", "math", 100)

	if !result.Accepted {
		t.Fatal("first completion must be accepted")
	}
	if result.PointsEarned != 70 {
		t.Errorf("expected 70 points, got %d", result.PointsEarned)
	}
	if result.StreakCount != 1 {
		t.Errorf("expected streak 1, got %d", result.StreakCount)
	}
	if len(result.NewAchievements) != 1 || result.NewAchievements[0] != "first-steps" {
		t.Errorf("expected first-steps unlock, got %v", result.NewAchievements)
	}

	card, err := eng.Card(context.Background(), "kid-1")
	if err != nil {
		t.Fatal(err)
	}
	if card.TotalPoints != 95 || card.AvailablePoints != 95 {
		t.Errorf("expected 95/95 after tier reward, got %d/%d", card.TotalPoints, card.AvailablePoints)
	}
}

func TestRecordCompletion_ScoreBands(t *testing.T) {
	// Score bands are exclusive: only the highest applicable bonus applies.
	cases := []struct {
		score int
		bonus int
	}{
		{100, 20},
		{99, 10},
		{80, 10},
		{79, 5},
		{60, 5},
		{59, 0},
		{0, 0},
	}

	for _, c := range cases {
		eng, _ := newTestEngine(t)
		// Burn the first-activity and first-category bonuses with a setup
		// completion in another category on the same day.
		record(t, eng, "kid-1", "setup", "warmup", 0)

		result := record(t, eng, "kid-1", "act-1", "math", c.score)
		// 10 base + band + 25 first-in-category; same-day so streak stays 1.
		want := 10 + c.bonus + 25
		if result.PointsEarned != want {
			t.Errorf("score %d: expected %d points, got %d", c.score, want, result.PointsEarned)
		}
	}
}

func TestRecordCompletion_DuplicateIsNoOp(t *testing.T) {
	// GIVEN: An already-credited activity
	// WHEN: Recording it again
	// THEN: Accepted=false with no state change - not an error

	eng, _ := newTestEngine(t)
	record(t, eng, "kid-1", "act-1", "math", 100)

	before, _ := eng.Card(context.Background(), "kid-1")
	result := record(t, eng, "kid-1", "act-1", "math", 100)

	if result.Accepted {
		t.Error("duplicate must not be accepted")
	}
	if result.Reason != "already completed" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	if result.PointsEarned != 0 {
		t.Errorf("duplicate must earn nothing, got %d", result.PointsEarned)
	}

	after, _ := eng.Card(context.Background(), "kid-1")
	if after.TotalPoints != before.TotalPoints {
		t.Errorf("duplicate changed points: %d -> %d", before.TotalPoints, after.TotalPoints)
	}
	if after.StreakCount != before.StreakCount {
		t.Errorf("duplicate changed streak: %d -> %d", before.StreakCount, after.StreakCount)
	}
}

func TestRecordCompletion_SameActivityDifferentLearners(t *testing.T) {
	eng, _ := newTestEngine(t)
	if r := record(t, eng, "kid-1", "act-1", "math", 80); !r.Accepted {
		t.Error("kid-1 rejected")
	}
	if r := record(t, eng, "kid-2", "act-1", "math", 80); !r.Accepted {
		t.Error("the idempotence key is per learner, not global")
	}
}

// =============================================================================
// STREAKS
// =============================================================================

func TestRecordCompletion_StreakProgression(t *testing.T) {
	// GIVEN: One completion per day for 8 consecutive days, score 50 (no band)
	// THEN: Streak bonus 5 x streak from day 2; the weekly 50 fires exactly
	//       once, on the crossing into 7

	eng, _ := newTestEngine(t)
	start := time.Date(2025, time.March, 1, 18, 0, 0, 0, time.UTC)

	// Day 1: 10 base + 15 first activity + 25 first category.
	r := replayOn(t, eng, "kid-1", "day-1", "math", 50, start)
	if r.PointsEarned != 50 || r.StreakCount != 1 {
		t.Fatalf("day 1: got %d points, streak %d", r.PointsEarned, r.StreakCount)
	}

	wantPoints := map[int]int{
		2: 10 + 5*2,      // 20
		3: 10 + 5*3,      // 25
		4: 10 + 5*4,      // 30
		5: 10 + 5*5,      // 35
		6: 10 + 5*6,      // 40
		7: 10 + 5*7 + 50, // 95, weekly crossing
		8: 10 + 5*8,      // 50, no re-fire
	}
	for dayN := 2; dayN <= 8; dayN++ {
		r := replayOn(t, eng, "kid-1", "day-"+string(rune('0'+dayN)), "math", 50,
			start.AddDate(0, 0, dayN-1))
		if r.StreakCount != dayN {
			t.Errorf("day %d: expected streak %d, got %d", dayN, dayN, r.StreakCount)
		}
		if r.PointsEarned != wantPoints[dayN] {
			t.Errorf("day %d: expected %d points, got %d", dayN, wantPoints[dayN], r.PointsEarned)
		}
	}
}

func TestRecordCompletion_SameDayDoesNotExtendStreak(t *testing.T) {
	eng, _ := newTestEngine(t)
	at := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

	replayOn(t, eng, "kid-1", "act-1", "math", 50, at)
	r := replayOn(t, eng, "kid-1", "act-2", "math", 50, at.Add(2*time.Hour))

	if r.StreakCount != 1 {
		t.Errorf("same-day repeat must not extend the streak, got %d", r.StreakCount)
	}
	// Streak 1 means no streak bonus either.
	if r.PointsEarned != 10 {
		t.Errorf("expected bare base 10, got %d", r.PointsEarned)
	}
}

func TestRecordCompletion_GapResetsStreakAndWeeklyRefires(t *testing.T) {
	// GIVEN: A streak that reached 7 (weekly fired), then broke
	// WHEN: Climbing back to 7
	// THEN: The weekly bonus fires again - a new upward crossing

	eng, _ := newTestEngine(t)
	start := time.Date(2025, time.March, 1, 18, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		replayOn(t, eng, "kid-1", "first-"+string(rune('a'+i)), "math", 50, start.AddDate(0, 0, i))
	}

	// Break the streak with a 3-day gap, then climb again.
	second := start.AddDate(0, 0, 10)
	r := replayOn(t, eng, "kid-1", "second-a", "math", 50, second)
	if r.StreakCount != 1 {
		t.Fatalf("gap must reset streak, got %d", r.StreakCount)
	}
	for i := 1; i < 7; i++ {
		r = replayOn(t, eng, "kid-1", "second-"+string(rune('a'+i)), "math", 50, second.AddDate(0, 0, i))
	}
	if r.StreakCount != 7 {
		t.Fatalf("expected streak 7 after reclimb, got %d", r.StreakCount)
	}
	if r.PointsEarned != 10+5*7+50 {
		t.Errorf("weekly bonus must re-fire on a fresh crossing, got %d points", r.PointsEarned)
	}
}

// =============================================================================
// MONOTONICITY AND PERSISTENCE
// =============================================================================

func TestRecordCompletion_TotalPointsMonotone(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	prev := 0
	for i, score := range []int{0, 100, 40, 80, 0} {
		record(t, eng, "kid-1", "act-"+string(rune('a'+i)), "math", score)
		card, err := eng.Card(ctx, "kid-1")
		if err != nil {
			t.Fatal(err)
		}
		if card.TotalPoints < prev {
			t.Fatalf("TotalPoints decreased: %d -> %d", prev, card.TotalPoints)
		}
		if err := card.CheckInvariants(); err != nil {
			t.Fatalf("invariants violated: %v", err)
		}
		prev = card.TotalPoints
	}
}

func TestRecordCompletion_PersistsThroughStore(t *testing.T) {
	// The card must be readable by a fresh engine over the same store:
	// nothing may live only in the first engine's cache.

	eng, mem := newTestEngine(t)
	record(t, eng, "kid-1", "act-1", "math", 100)

	eng2 := engine.New(mem, catalog.Default(), nil)
	card, err := eng2.Card(context.Background(), "kid-1")
	if err != nil {
		t.Fatalf("fresh engine could not load card: %v", err)
	}
	if card.TotalPoints != 95 {
		t.Errorf("expected persisted 95 points, got %d", card.TotalPoints)
	}

	completions, _ := eng2.Completions(context.Background(), "kid-1")
	if len(completions) != 1 || completions[0].PointsEarned != 70 {
		t.Errorf("completion record wrong: %+v", completions)
	}
}

// crashyStore fails combined commits a configured number of times, as a
// store would during a transient write failure.
type crashyStore struct {
	ledger.Store
	failures int
}

func (s *crashyStore) CommitCompletion(ctx context.Context, c ledger.ActivityCompletion, card *ledger.RewardCard) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("database is locked")
	}
	return s.Store.CommitCompletion(ctx, c, card)
}

func (s *crashyStore) CommitChallenge(ctx context.Context, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID, card *ledger.RewardCard) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("database is locked")
	}
	return s.Store.CommitChallenge(ctx, learnerID, date, id, card)
}

func TestRecordCompletion_FailedCommitLeavesNoTrace(t *testing.T) {
	// GIVEN: A store that fails the combined completion+card write once
	// WHEN: Recording, then retrying the same activity
	// THEN: The failed attempt leaves neither a completion nor points behind,
	//       and the retry is accepted with full credit

	mem := store.NewMemory()
	st := &crashyStore{Store: mem, failures: 1}
	eng := engine.New(st, catalog.Default(), nil)
	eng.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	_, err := eng.RecordCompletion(ctx, engine.CompletionInput{
		LearnerID: "kid-1", ActivityID: "act-1", Score: 100, Category: "math",
	})
	if err == nil {
		t.Fatal("expected the failed commit to surface")
	}

	completions, _ := mem.Completions(ctx, "kid-1")
	if len(completions) != 0 {
		t.Fatalf("failed commit must not record a completion, got %d", len(completions))
	}
	points, _ := eng.AvailablePoints(ctx, "kid-1")
	if points != 0 {
		t.Fatalf("failed commit must not credit points, got %d", points)
	}

	r := record(t, eng, "kid-1", "act-1", "math", 100)
	if !r.Accepted {
		t.Fatal("retry after a failed commit must be accepted")
	}
	if r.PointsEarned != 70 {
		t.Errorf("retry must earn full credit, got %d", r.PointsEarned)
	}
}

// stallingRemote blocks its first write until released.
type stallingRemote struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newStallingRemote() *stallingRemote {
	return &stallingRemote{entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *stallingRemote) Completions(context.Context, ledger.LearnerID) ([]ledger.ActivityCompletion, error) {
	return nil, nil
}

func (r *stallingRemote) RecordCompletion(context.Context, ledger.LearnerID, ledger.ActivityCompletion) error {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()
	if first {
		close(r.entered)
		<-r.release
	}
	return nil
}

func (r *stallingRemote) ResetProgress(context.Context, ledger.LearnerID) error { return nil }

func TestRecordCompletion_SlowRemoteDoesNotBlockNextWrite(t *testing.T) {
	// GIVEN: A remote whose first write hangs
	// WHEN: Recording a second activity while that write is in flight
	// THEN: The second local commit completes - the remote write runs
	//       outside the learner lock

	remote := newStallingRemote()
	mem := store.NewMemory()
	eng := engine.New(mem, catalog.Default(), remote)
	eng.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		eng.RecordCompletion(ctx, engine.CompletionInput{
			LearnerID: "kid-1", ActivityID: "act-1", Score: 50, Category: "math",
		})
	}()
	<-remote.entered

	secondDone := make(chan ledger.CompletionResult, 1)
	go func() {
		res, _ := eng.RecordCompletion(ctx, engine.CompletionInput{
			LearnerID: "kid-1", ActivityID: "act-2", Score: 50, Category: "math",
		})
		secondDone <- res
	}()

	select {
	case res := <-secondDone:
		if !res.Accepted {
			t.Error("second completion must be accepted")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("local write stalled behind the in-flight remote write")
	}

	close(remote.release)
	<-firstDone
}

func TestResetProgress(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	record(t, eng, "kid-1", "act-1", "math", 100)

	if err := eng.ResetProgress(ctx, "kid-1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	points, err := eng.AvailablePoints(ctx, "kid-1")
	if err != nil || points != 0 {
		t.Errorf("expected 0 points after reset, got %d (%v)", points, err)
	}

	// The activity is creditable again after a reset.
	r := record(t, eng, "kid-1", "act-1", "math", 100)
	if !r.Accepted {
		t.Error("activity must be creditable again after reset")
	}
}
