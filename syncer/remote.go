/*
Package syncer merges locally-recorded (guest/offline) progress with a
remote account and keeps a bounded local backup of remote completions.

PURPOSE:
  This file implements the remote completion API client. The remote service
  is a plain JSON-over-HTTP collaborator:

    GET    {base}/learners/{id}/completions   -> [completion, ...]
    POST   {base}/learners/{id}/completions   <- completion
    POST   {base}/learners/{id}/reset

  Every call is bounded by a timeout and a linear-backoff retry budget.
  Exhaustion surfaces ErrRemoteUnavailable; callers degrade to local-only
  operation. There is no cancellation beyond the bounded budget - these are
  short-lived calls.

SEE ALSO:
  - ledger/store.go: The RemoteAPI interface this implements
  - reconciler.go: The replay protocol built on top
*/
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lumikids/progress-engine/ledger"
)

// =============================================================================
// HTTP CLIENT
// =============================================================================

// Client is the HTTP implementation of ledger.RemoteAPI.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// Retries bounds attempts per call; Backoff is the linear base delay.
	Retries int
	Backoff time.Duration
}

var _ ledger.RemoteAPI = (*Client)(nil)

// NewClient creates a remote client with sane defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Retries: 3,
		Backoff: 250 * time.Millisecond,
	}
}

// completionWire is the over-the-wire completion shape.
type completionWire struct {
	ActivityID       string    `json:"activity_id"`
	CompletedAt      time.Time `json:"completed_at"`
	Score            int       `json:"score"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	Category         string    `json:"category"`
	PointsEarned     int       `json:"points_earned"`
}

// Completions fetches the learner's remote completion set.
func (c *Client) Completions(ctx context.Context, learnerID ledger.LearnerID) ([]ledger.ActivityCompletion, error) {
	endpoint := fmt.Sprintf("%s/learners/%s/completions", c.BaseURL, url.PathEscape(string(learnerID)))

	var wire []completionWire
	err := c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("remote returned %s", resp.Status)
		}
		wire = nil
		return json.NewDecoder(resp.Body).Decode(&wire)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrRemoteUnavailable, err)
	}

	completions := make([]ledger.ActivityCompletion, len(wire))
	for i, w := range wire {
		completions[i] = ledger.ActivityCompletion{
			LearnerID:        learnerID,
			ActivityID:       ledger.ActivityID(w.ActivityID),
			CompletedAt:      w.CompletedAt,
			Score:            w.Score,
			TimeSpentSeconds: w.TimeSpentSeconds,
			Category:         w.Category,
			PointsEarned:     w.PointsEarned,
			Synced:           true,
		}
	}
	return completions, nil
}

// RecordCompletion writes one completion remotely.
func (c *Client) RecordCompletion(ctx context.Context, learnerID ledger.LearnerID, completion ledger.ActivityCompletion) error {
	endpoint := fmt.Sprintf("%s/learners/%s/completions", c.BaseURL, url.PathEscape(string(learnerID)))

	body, err := json.Marshal(completionWire{
		ActivityID:       string(completion.ActivityID),
		CompletedAt:      completion.CompletedAt,
		Score:            completion.Score,
		TimeSpentSeconds: completion.TimeSpentSeconds,
		Category:         completion.Category,
		PointsEarned:     completion.PointsEarned,
	})
	if err != nil {
		return err
	}

	err = c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("remote returned %s", resp.Status)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrRemoteUnavailable, err)
	}
	return nil
}

// ResetProgress clears remote progress for a learner.
func (c *Client) ResetProgress(ctx context.Context, learnerID ledger.LearnerID) error {
	endpoint := fmt.Sprintf("%s/learners/%s/reset", c.BaseURL, url.PathEscape(string(learnerID)))

	err := c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("remote returned %s", resp.Status)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrRemoteUnavailable, err)
	}
	return nil
}

// withRetry runs fn up to Retries times with linear backoff.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	var err error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * c.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
