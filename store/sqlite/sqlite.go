/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Durable local persistence for the progress engine. This is the store the
  device runs on; the in-memory store mirrors its semantics for tests.

KEY TABLES:
  cards:                 One versioned JSON blob per learner
  completions:           Append-only completion log, unique per (learner, activity)
  challenges:            Generated daily challenge sets, keyed by date
  challenge_completions: Per-learner challenge credit marks
  snapshots:             Bounded backup snapshots of remote completions

APPEND-ONLY ENFORCEMENT:
  completions has no UPDATE path except the synced flag, and no DELETE path
  except RemoveCard (full reset). The unique index on (learner_id,
  activity_id) is the durable idempotence key behind the recorder's gate.

BLOB VERSIONING:
  Cards round-trip through ledger.EncodeCard/DecodeCard, so legacy blob
  shapes migrate on read and blobs from newer builds are rejected instead
  of silently mangled.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block, a
  single writer at a time, better crash recovery. That matches the engine's
  one-logical-writer-per-learner discipline.

USAGE:
  store, err := sqlite.New("./data/progress.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/codec.go: Card blob encoding
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumikids/progress-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.Store = (*Store)(nil)

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Cards: one versioned JSON blob per learner
	CREATE TABLE IF NOT EXISTS cards (
		learner_id TEXT PRIMARY KEY,
		blob TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Completions (append-only log)
	CREATE TABLE IF NOT EXISTS completions (
		learner_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		score INTEGER NOT NULL,
		time_spent_seconds INTEGER NOT NULL,
		category TEXT NOT NULL,
		points_earned INTEGER NOT NULL,
		synced BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- CRITICAL: the durable idempotence key. A learner is credited for an
	-- activity at most once; a second insert fails here.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_completions_learner_activity
		ON completions(learner_id, activity_id);

	CREATE INDEX IF NOT EXISTS idx_completions_learner_date
		ON completions(learner_id, completed_at);

	-- Daily challenge sets, generated once per date
	CREATE TABLE IF NOT EXISTS challenges (
		date TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		template_index INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		bonus_points INTEGER NOT NULL,
		PRIMARY KEY (date, challenge_id)
	);

	-- Per-learner challenge credit marks
	CREATE TABLE IF NOT EXISTS challenge_completions (
		learner_id TEXT NOT NULL,
		date TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (learner_id, date, challenge_id)
	);

	-- Backup snapshots of remote completions (bounded, FIFO-evicted)
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		learner_id TEXT NOT NULL,
		taken_at TEXT NOT NULL,
		completions_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_learner
		ON snapshots(learner_id, taken_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CARDS
// =============================================================================

// GetCard returns the learner's card, or ledger.ErrCardNotFound.
func (s *Store) GetCard(ctx context.Context, learnerID ledger.LearnerID) (*ledger.RewardCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		"SELECT blob FROM cards WHERE learner_id = ?", string(learnerID),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}

	return ledger.DecodeCard([]byte(blob))
}

// PutCard saves the learner's card as a versioned blob.
func (s *Store) PutCard(ctx context.Context, card *ledger.RewardCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertCard(ctx, s.db, card)
}

// execer is the subset of *sql.DB and *sql.Tx the write helpers need, so a
// statement can run standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertCard(ctx context.Context, ex execer, card *ledger.RewardCard) error {
	blob, err := ledger.EncodeCard(card)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cards (learner_id, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(learner_id) DO UPDATE SET
			blob = excluded.blob,
			updated_at = excluded.updated_at
	`
	_, err = ex.ExecContext(ctx, query,
		string(card.LearnerID), string(blob),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RemoveCard deletes a learner's card, completions, and challenge marks.
func (s *Store) RemoveCard(ctx context.Context, learnerID ledger.LearnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM cards WHERE learner_id = ?",
		"DELETE FROM completions WHERE learner_id = ?",
		"DELETE FROM challenge_completions WHERE learner_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, string(learnerID)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// Completions returns all completions for a learner, oldest first.
func (s *Store) Completions(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.ActivityCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT learner_id, activity_id, completed_at, score, time_spent_seconds,
		       category, points_earned, synced
		FROM completions
		WHERE learner_id = ?
		ORDER BY completed_at ASC, activity_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(learnerID))
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var completions []ledger.ActivityCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// HasCompletion checks the (learner, activity) idempotence key.
func (s *Store) HasCompletion(ctx context.Context, learnerID ledger.LearnerID, activityID ledger.ActivityID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM completions WHERE learner_id = ? AND activity_id = ?",
		string(learnerID), string(activityID),
	).Scan(&count)
	return count > 0, err
}

// AppendCompletion records a completion. The unique index rejects a second
// completion of the same activity for the same learner.
func (s *Store) AppendCompletion(ctx context.Context, c ledger.ActivityCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCompletion(ctx, s.db, c)
}

func insertCompletion(ctx context.Context, ex execer, c ledger.ActivityCompletion) error {
	query := `
		INSERT INTO completions
		(learner_id, activity_id, completed_at, score, time_spent_seconds, category, points_earned, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.ExecContext(ctx, query,
		string(c.LearnerID),
		string(c.ActivityID),
		c.CompletedAt.UTC().Format(time.RFC3339),
		c.Score,
		c.TimeSpentSeconds,
		c.Category,
		c.PointsEarned,
		c.Synced,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.DuplicateCompletionError{
				LearnerID:  c.LearnerID,
				ActivityID: c.ActivityID,
			}
		}
		return fmt.Errorf("failed to append completion: %w", err)
	}
	return nil
}

// CommitCompletion inserts the completion and upserts the card in one
// transaction. A rejected insert rolls the card write back with it.
func (s *Store) CommitCompletion(ctx context.Context, c ledger.ActivityCompletion, card *ledger.RewardCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCompletion(ctx, tx, c); err != nil {
		return err
	}
	if err := upsertCard(ctx, tx, card); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkSynced flags a completion as written remotely. Best-effort: marking an
// unknown activity is a no-op.
func (s *Store) MarkSynced(ctx context.Context, learnerID ledger.LearnerID, activityID ledger.ActivityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE completions SET synced = TRUE WHERE learner_id = ? AND activity_id = ?",
		string(learnerID), string(activityID),
	)
	return err
}

func scanCompletion(rows *sql.Rows) (ledger.ActivityCompletion, error) {
	var (
		c           ledger.ActivityCompletion
		learnerID   string
		activityID  string
		completedAt string
	)
	err := rows.Scan(&learnerID, &activityID, &completedAt,
		&c.Score, &c.TimeSpentSeconds, &c.Category, &c.PointsEarned, &c.Synced)
	if err != nil {
		return c, fmt.Errorf("failed to scan completion: %w", err)
	}
	c.LearnerID = ledger.LearnerID(learnerID)
	c.ActivityID = ledger.ActivityID(activityID)
	c.CompletedAt, _ = time.Parse(time.RFC3339, completedAt)
	return c, nil
}

// =============================================================================
// DAILY CHALLENGES
// =============================================================================

// ChallengesFor returns the challenge set generated for a date, ordered as
// generated. Empty when the date has not been generated yet.
func (s *Store) ChallengesFor(ctx context.Context, date ledger.Day) ([]ledger.DailyChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT challenge_id, template_index, title, description, category, bonus_points
		FROM challenges
		WHERE date = ?
		ORDER BY rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []ledger.DailyChallenge
	for rows.Next() {
		var c ledger.DailyChallenge
		var id string
		if err := rows.Scan(&id, &c.TemplateIndex, &c.Title, &c.Description, &c.Category, &c.BonusPoints); err != nil {
			return nil, err
		}
		c.ID = ledger.ChallengeID(id)
		c.Date = date
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// PutChallenges stores the generated set for a date. Re-storing an already
// generated date is a no-op per challenge.
func (s *Store) PutChallenges(ctx context.Context, date ledger.Day, challenges []ledger.DailyChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO challenges (date, challenge_id, template_index, title, description, category, bonus_points)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, challenge_id) DO NOTHING
	`
	for _, c := range challenges {
		if _, err := tx.ExecContext(ctx, query,
			date.String(), string(c.ID), c.TemplateIndex,
			c.Title, c.Description, c.Category, c.BonusPoints,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CompletedChallenges returns the ids a learner completed on a date.
func (s *Store) CompletedChallenges(ctx context.Context, learnerID ledger.LearnerID, date ledger.Day) (map[ledger.ChallengeID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT challenge_id FROM challenge_completions WHERE learner_id = ? AND date = ?",
		string(learnerID), date.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := make(map[ledger.ChallengeID]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		completed[ledger.ChallengeID(id)] = true
	}
	return completed, rows.Err()
}

// MarkChallengeCompleted records a learner's challenge completion.
// Idempotent: the primary key absorbs a repeat mark.
func (s *Store) MarkChallengeCompleted(ctx context.Context, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertChallengeMark(ctx, s.db, learnerID, date, id)
}

func insertChallengeMark(ctx context.Context, ex execer, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID) error {
	query := `
		INSERT INTO challenge_completions (learner_id, date, challenge_id, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(learner_id, date, challenge_id) DO NOTHING
	`
	_, err := ex.ExecContext(ctx, query,
		string(learnerID), date.String(), string(id),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// CommitChallenge inserts the credit mark and upserts the card in one
// transaction, mirroring CommitCompletion.
func (s *Store) CommitChallenge(ctx context.Context, learnerID ledger.LearnerID, date ledger.Day, id ledger.ChallengeID, card *ledger.RewardCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertChallengeMark(ctx, tx, learnerID, date, id); err != nil {
		return err
	}
	if err := upsertCard(ctx, tx, card); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// BACKUP SNAPSHOTS
// =============================================================================

// Snapshots returns backup snapshots for a learner, oldest first.
func (s *Store) Snapshots(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, taken_at, completions_json
		FROM snapshots
		WHERE learner_id = ?
		ORDER BY taken_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(learnerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []ledger.BackupSnapshot
	for rows.Next() {
		var snap ledger.BackupSnapshot
		var completionsJSON string
		if err := rows.Scan(&snap.ID, &snap.TakenAt, &completionsJSON); err != nil {
			return nil, err
		}
		snap.LearnerID = learnerID
		if err := decodeSnapshotCompletions(completionsJSON, &snap); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// PutSnapshot stores a backup snapshot.
func (s *Store) PutSnapshot(ctx context.Context, snap ledger.BackupSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	completionsJSON, err := encodeSnapshotCompletions(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, learner_id, taken_at, completions_json) VALUES (?, ?, ?, ?)",
		snap.ID, string(snap.LearnerID), snap.TakenAt, completionsJSON,
	)
	return err
}

// RemoveSnapshot deletes one snapshot.
func (s *Store) RemoveSnapshot(ctx context.Context, learnerID ledger.LearnerID, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM snapshots WHERE learner_id = ? AND id = ?",
		string(learnerID), snapshotID,
	)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// snapshotCompletion is the stored shape of one snapshotted completion.
type snapshotCompletion struct {
	ActivityID       string    `json:"activity_id"`
	CompletedAt      time.Time `json:"completed_at"`
	Score            int       `json:"score"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	Category         string    `json:"category"`
	PointsEarned     int       `json:"points_earned"`
}

func encodeSnapshotCompletions(snap ledger.BackupSnapshot) (string, error) {
	wire := make([]snapshotCompletion, len(snap.Completions))
	for i, c := range snap.Completions {
		wire[i] = snapshotCompletion{
			ActivityID:       string(c.ActivityID),
			CompletedAt:      c.CompletedAt,
			Score:            c.Score,
			TimeSpentSeconds: c.TimeSpentSeconds,
			Category:         c.Category,
			PointsEarned:     c.PointsEarned,
		}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSnapshotCompletions(data string, snap *ledger.BackupSnapshot) error {
	var wire []snapshotCompletion
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return fmt.Errorf("corrupt snapshot blob: %w", err)
	}
	snap.Completions = make([]ledger.ActivityCompletion, len(wire))
	for i, w := range wire {
		snap.Completions[i] = ledger.ActivityCompletion{
			LearnerID:        snap.LearnerID,
			ActivityID:       ledger.ActivityID(w.ActivityID),
			CompletedAt:      w.CompletedAt,
			Score:            w.Score,
			TimeSpentSeconds: w.TimeSpentSeconds,
			Category:         w.Category,
			PointsEarned:     w.PointsEarned,
			Synced:           true,
		}
	}
	return nil
}
