/*
recorder.go - Activity completion recording and point composition

PURPOSE:
  Records a single completion event, computes the points it earns, updates
  the card (points, streak), and re-evaluates achievements - all as one
  logical transaction under the learner's lock. The per-activity idempotence
  check here is the ONLY duplicate gate in the system; the sync reconciler
  relies on it when replaying guest progress.

POINT COMPOSITION (applied in order):
  base              10   every accepted completion
  score tier        20 / 10 / 5   perfect (>=100) / excellent (>=80) /
                    good (>=60); highest applicable band only
  first activity    15   learner's completion set was empty before this call
  first in category 25   no prior completion shares the category
  streak bonus      5 x streak   when the post-update streak is >= 2
  weekly bonus      50   on the upward crossing into a 7-day streak

DUPLICATES:
  A second completion of the same (learner, activity) returns
  Accepted=false with reason "already completed". Callers treat this as
  "already credited", never as an error.

REMOTE WRITE:
  After the local commit - and outside the learner lock, so a slow remote
  never stalls the learner's next local operation - the completion is
  written remotely best-effort with a bounded linear-backoff retry budget.
  Failure never rolls back the local credit; the completion stays marked
  unsynced and is pushed by the next reconciliation.
*/
package engine

import (
	"context"
	"log"
	"time"

	"github.com/lumikids/progress-engine/ledger"
)

// Point composition constants.
const (
	BasePoints          = 10
	PerfectScoreBonus   = 20
	ExcellentScoreBonus = 10
	GoodScoreBonus      = 5
	FirstActivityBonus  = 15
	FirstCategoryBonus  = 25
	StreakBonusPerDay   = 5
	WeeklyStreakBonus   = 50
)

// Score tier boundaries.
const (
	perfectScore   = 100
	excellentScore = 80
	goodScore      = 60
)

// CompletionInput carries one completion event into the recorder.
type CompletionInput struct {
	LearnerID        ledger.LearnerID
	ActivityID       ledger.ActivityID
	Score            int // 0-100
	TimeSpentSeconds int
	Category         string
}

// RecordCompletion records a completion happening now.
func (e *Engine) RecordCompletion(ctx context.Context, in CompletionInput) (ledger.CompletionResult, error) {
	return e.recordAt(ctx, in, e.now(), true)
}

// ReplayCompletion records a completion preserving its original timestamp.
// Used by the sync reconciler; the remote write is skipped when the replay
// source is already the remote set.
func (e *Engine) ReplayCompletion(ctx context.Context, in CompletionInput, completedAt time.Time, writeRemote bool) (ledger.CompletionResult, error) {
	return e.recordAt(ctx, in, completedAt, writeRemote)
}

// recordAt is the single implementation behind both entry points. The local
// commit runs under the learner lock; the remote write runs after the lock
// is released, against the already-durable completion.
func (e *Engine) recordAt(ctx context.Context, in CompletionInput, completedAt time.Time, writeRemote bool) (ledger.CompletionResult, error) {
	result, completion, err := e.commitLocal(ctx, in, completedAt)
	if err != nil || !result.Accepted {
		return result, err
	}
	if writeRemote {
		e.writeRemote(ctx, completion)
	}
	return result, nil
}

// commitLocal performs the locked portion of a recording: gate, compose,
// award, evaluate, and the single atomic store commit.
func (e *Engine) commitLocal(ctx context.Context, in CompletionInput, completedAt time.Time) (ledger.CompletionResult, ledger.ActivityCompletion, error) {
	lock := e.lockLearner(in.LearnerID)
	defer lock.Unlock()

	// Idempotence gate: a given activity is creditable at most once.
	exists, err := e.store.HasCompletion(ctx, in.LearnerID, in.ActivityID)
	if err != nil {
		return ledger.CompletionResult{}, ledger.ActivityCompletion{}, err
	}
	if exists {
		return ledger.CompletionResult{Accepted: false, Reason: "already completed"}, ledger.ActivityCompletion{}, nil
	}

	prior, err := e.store.Completions(ctx, in.LearnerID)
	if err != nil {
		return ledger.CompletionResult{}, ledger.ActivityCompletion{}, err
	}

	card, err := e.loadOrCreateCard(ctx, in.LearnerID)
	if err != nil {
		return ledger.CompletionResult{}, ledger.ActivityCompletion{}, err
	}

	now := e.now()
	day := ledger.DayOf(completedAt)
	streak := card.TouchStreak(day, now)

	points := composePoints(in, prior, streak)
	if err := card.Award(points, now); err != nil {
		return ledger.CompletionResult{}, ledger.ActivityCompletion{}, err
	}

	completion := ledger.ActivityCompletion{
		LearnerID:        in.LearnerID,
		ActivityID:       in.ActivityID,
		CompletedAt:      completedAt,
		Score:            in.Score,
		TimeSpentSeconds: in.TimeSpentSeconds,
		Category:         in.Category,
		PointsEarned:     points,
	}

	// Evaluate achievements against the post-award state (the evaluator
	// sees this completion), then land the completion record and the card
	// as one atomic store commit.
	all := append(prior, completion)
	unlocked := e.evaluateLocked(card, all, now)

	if err := e.commitCompletion(ctx, completion, card); err != nil {
		return ledger.CompletionResult{}, ledger.ActivityCompletion{}, err
	}

	return ledger.CompletionResult{
		Accepted:        true,
		PointsEarned:    points,
		StreakCount:     card.StreakCount,
		NewAchievements: unlocked,
	}, completion, nil
}

// composePoints applies the bonus composition rules in order.
func composePoints(in CompletionInput, prior []ledger.ActivityCompletion, streak ledger.StreakTransition) int {
	points := BasePoints

	// Highest applicable score band only, not cumulative.
	switch {
	case in.Score >= perfectScore:
		points += PerfectScoreBonus
	case in.Score >= excellentScore:
		points += ExcellentScoreBonus
	case in.Score >= goodScore:
		points += GoodScoreBonus
	}

	if len(prior) == 0 {
		points += FirstActivityBonus
	}

	firstInCategory := true
	for i := range prior {
		if prior[i].Category == in.Category {
			firstInCategory = false
			break
		}
	}
	if firstInCategory {
		points += FirstCategoryBonus
	}

	if streak.After >= 2 {
		points += StreakBonusPerDay * streak.After
	}
	if streak.CrossedWeekly {
		points += WeeklyStreakBonus
	}

	return points
}

// writeRemote attempts the best-effort remote write with a bounded linear
// backoff. Failure is logged, never propagated: local state is the source
// of truth for the session and reconciliation covers the gap later.
func (e *Engine) writeRemote(ctx context.Context, c ledger.ActivityCompletion) {
	if e.remote == nil {
		return
	}

	var err error
	for attempt := 0; attempt < e.RemoteRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * e.RetryBackoff):
			case <-ctx.Done():
				return
			}
		}
		if err = e.remote.RecordCompletion(ctx, c.LearnerID, c); err == nil {
			if markErr := e.store.MarkSynced(ctx, c.LearnerID, c.ActivityID); markErr != nil {
				log.Printf("progress: failed to mark %s/%s synced: %v", c.LearnerID, c.ActivityID, markErr)
			}
			return
		}
	}
	log.Printf("progress: remote write failed for %s/%s, will sync later: %v", c.LearnerID, c.ActivityID, err)
}
