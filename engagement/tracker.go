// Package engagement tracks citizen upvotes on issues.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicwatch-be/models"
	"civicwatch-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type upvoteStore interface {
	ToggleUpvote(ctx context.Context, issueID, userID primitive.ObjectID, at time.Time) (store.UpvoteResult, error)
	HasUpvoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error)
	ReconcileUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error)
}

type Tracker struct {
	store upvoteStore
	now   func() time.Time
}

func NewTracker(s upvoteStore) *Tracker {
	return &Tracker{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Toggle flips the user's upvote on the issue and returns the new state and
// count. A concurrent duplicate is resolved by the store as a removal.
func (t *Tracker) Toggle(ctx context.Context, issueID, userID primitive.ObjectID) (bool, int, error) {
	res, err := t.store.ToggleUpvote(ctx, issueID, userID, t.now())
	if errors.Is(err, store.ErrNotFound) {
		return false, 0, models.NotFoundError("issue")
	}
	if errors.Is(err, store.ErrConflict) {
		return false, 0, models.ConflictError("concurrent_upvote", "upvote kept changing, try again")
	}
	if err != nil {
		return false, 0, fmt.Errorf("toggle upvote: %w", err)
	}
	return res.Upvoted, res.Count, nil
}

func (t *Tracker) HasUpvoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	ok, err := t.store.HasUpvoted(ctx, issueID, userID)
	if err != nil {
		return false, fmt.Errorf("lookup upvote: %w", err)
	}
	return ok, nil
}

// Reconcile recomputes the cached counter from the upvote rows.
func (t *Tracker) Reconcile(ctx context.Context, issueID primitive.ObjectID) (int, error) {
	n, err := t.store.ReconcileUpvotes(ctx, issueID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, models.NotFoundError("issue")
	}
	if err != nil {
		return 0, fmt.Errorf("reconcile upvotes: %w", err)
	}
	return n, nil
}
