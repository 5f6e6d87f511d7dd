package lifecycle

import (
	"context"

	"civicwatch-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BulkResult is the outcome for one issue of a bulk transition. Event is nil
// when the transition failed.
type BulkResult struct {
	IssueID primitive.ObjectID
	Issue   models.Issue
	Event   *Event
	Err     error
}

// BulkTransition moves each issue to status independently. A failure on one
// issue is recorded in its result and does not stop the rest.
func (e *Engine) BulkTransition(ctx context.Context, actor models.User, ids []primitive.ObjectID, status models.IssueStatus) ([]BulkResult, error) {
	if !CanBulkTransition(actor.Role) {
		return nil, models.ForbiddenError("role_cannot_bulk_transition", "only moderators may update issues in bulk")
	}
	if !status.Valid() {
		return nil, models.ValidationError("unknown_status", "unknown status "+string(status))
	}
	if len(ids) == 0 {
		return nil, models.ValidationError("no_issues", "no issues selected")
	}

	results := make([]BulkResult, 0, len(ids))
	seen := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		issue, ev, err := e.ApplyTransition(ctx, id, actor, TransitionRequest{Status: status})
		result := BulkResult{IssueID: id, Err: err}
		if err == nil {
			result.Issue = issue
			result.Event = &ev
		}
		results = append(results, result)
	}
	return results, nil
}
