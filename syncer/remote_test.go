package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumikids/progress-engine/ledger"
	"github.com/lumikids/progress-engine/syncer"
)

func fastClient(baseURL string) *syncer.Client {
	c := syncer.NewClient(baseURL)
	c.Backoff = time.Millisecond
	return c
}

func TestClient_Completions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/learners/user-1/completions" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"activity_id": "act-a", "score": 90, "category": "math",
				"completed_at": "2025-03-01T12:00:00Z", "points_earned": 45},
		})
	}))
	defer srv.Close()

	completions, err := fastClient(srv.URL).Completions(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(completions) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completions))
	}
	got := completions[0]
	if got.ActivityID != "act-a" || got.LearnerID != "user-1" || got.Score != 90 {
		t.Errorf("unexpected completion: %+v", got)
	}
	if !got.Synced {
		t.Error("remote completions are synced by definition")
	}
}

func TestClient_RecordCompletion(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := fastClient(srv.URL).RecordCompletion(context.Background(), "user-1", ledger.ActivityCompletion{
		ActivityID: "act-a", Score: 75, Category: "reading", PointsEarned: 40,
		CompletedAt: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if body["activity_id"] != "act-a" || body["score"] != float64(75) {
		t.Errorf("unexpected wire body: %+v", body)
	}
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	// The first two attempts fail, the third lands inside the retry budget.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	if _, err := fastClient(srv.URL).Completions(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected success within the retry budget: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_ExhaustionIsRemoteUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	err := c.ResetProgress(context.Background(), "user-1")
	if !errors.Is(err, ledger.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if int(calls.Load()) != c.Retries {
		t.Errorf("expected %d attempts, got %d", c.Retries, calls.Load())
	}
}

func TestClient_ContextCancelStopsRetrying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	c.Backoff = time.Hour // cancellation must win over the backoff sleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := c.ResetProgress(ctx, "user-1")
	if !errors.Is(err, ledger.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation must short-circuit the backoff sleep")
	}
}
