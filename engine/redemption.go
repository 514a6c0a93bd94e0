/*
redemption.go - Reward request/approval state machine

PURPOSE:
  Governs reward requests from creation through parental approval or denial
  to fulfillment:

    pending ──▶ approved ──▶ fulfilled
       │
       └─────▶ denied (terminal)

RULES:
  - Requesting never deducts points. The request is rejected up front when
    its cost plus the value of requests already pending exceeds the
    learner's available points.
  - Approval deducts availablePoints only (TotalPoints is monotone) and
    appends an append-only RewardRedemption. If available points dropped
    below the cost since the request was made, approval fails with an
    explicit insufficient-points error - the balance never goes negative
    and is never clamped.
  - Resolving an already-resolved request is an integrity ERROR, unlike the
    idempotent no-ops elsewhere: a double-resolve indicates a workflow bug,
    not a retried event.

SEE ALSO:
  - ledger/card.go: The transition functions this file drives
  - catalog/catalog.go: Reward costs come from the validated catalog
*/
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumikids/progress-engine/ledger"
)

// RequestReward creates a pending redemption request for a catalog reward.
// The reward's cost comes from the catalog - the caller cannot name its own
// price. Returns the created request.
func (e *Engine) RequestReward(ctx context.Context, learnerID ledger.LearnerID, rewardID, message string) (*ledger.RewardRequest, error) {
	reward, err := e.catalog.Reward(rewardID)
	if err != nil {
		return nil, err
	}

	lock := e.lockLearner(learnerID)
	defer lock.Unlock()

	card, err := e.loadOrCreateCard(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	req := ledger.RewardRequest{
		ID:             ledger.RequestID(uuid.NewString()),
		RewardID:       reward.ID,
		PointsRequired: reward.PointsCost,
		RequestedAt:    e.now(),
		ChildMessage:   message,
	}
	if err := card.AddRequest(req); err != nil {
		// No state change on rejection: the card was not modified.
		return nil, err
	}

	if err := e.persistCard(ctx, card); err != nil {
		return nil, err
	}
	created := card.FindRequest(req.ID)
	return created, nil
}

// ResolveRequest transitions a pending request to approved or denied.
// Approval returns the redemption record created.
func (e *Engine) ResolveRequest(ctx context.Context, learnerID ledger.LearnerID, requestID ledger.RequestID, approved bool, response string) (*ledger.RewardRedemption, error) {
	lock := e.lockLearner(learnerID)
	defer lock.Unlock()

	card, err := e.loadCardForUpdate(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	redemption, err := card.Resolve(requestID, ledger.RedemptionID(uuid.NewString()), approved, response, e.now())
	if err != nil {
		return nil, err
	}

	if err := e.persistCard(ctx, card); err != nil {
		return nil, err
	}
	return redemption, nil
}

// FulfillRedemption marks an approved redemption as handed over.
func (e *Engine) FulfillRedemption(ctx context.Context, learnerID ledger.LearnerID, redemptionID ledger.RedemptionID) error {
	lock := e.lockLearner(learnerID)
	defer lock.Unlock()

	card, err := e.loadCardForUpdate(ctx, learnerID)
	if err != nil {
		return err
	}
	if err := card.Fulfill(redemptionID, e.now()); err != nil {
		return err
	}
	return e.persistCard(ctx, card)
}
