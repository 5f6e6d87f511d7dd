package lifecycle

import (
	"time"

	"civicwatch-be/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventKind string

const (
	KindIssueReported     EventKind = "issue.reported"
	KindIssueTransitioned EventKind = "issue.transitioned"
	KindCommentAdded      EventKind = "comment.added"
)

// Resolution is attached when an issue reaches Resolved.
type Resolution struct {
	Notes    string `json:"notes,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Event records what one committed mutation changed. Previous values come from
// the snapshot read in the same attempt that committed.
type Event struct {
	ID              string              `json:"id"`
	Kind            EventKind           `json:"kind"`
	IssueID         primitive.ObjectID  `json:"issueId"`
	Actor           primitive.ObjectID  `json:"actor"`
	PreviousStatus  models.IssueStatus  `json:"previousStatus,omitempty"`
	NewStatus       models.IssueStatus  `json:"newStatus"`
	PreviousManager *primitive.ObjectID `json:"previousManager,omitempty"`
	NewManager      *primitive.ObjectID `json:"newManager,omitempty"`
	StatusChanged   bool                `json:"statusChanged"`
	ManagerAssigned bool                `json:"managerAssigned"`
	Resolution      *Resolution         `json:"resolution,omitempty"`
	Comment         *models.Comment     `json:"comment,omitempty"`
	Issue           models.Issue        `json:"issue"`
	OccurredAt      time.Time           `json:"occurredAt"`
}

// Changed reports whether the event carries a real status or assignment change.
func (e Event) Changed() bool {
	return e.StatusChanged || e.ManagerAssigned
}

func newEvent(kind EventKind, actor primitive.ObjectID, issue models.Issue, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		IssueID:    issue.ID,
		Actor:      actor,
		NewStatus:  issue.Status,
		NewManager: issue.AssignedToManager,
		Issue:      issue,
		OccurredAt: at,
	}
}

func transitionEvent(actor primitive.ObjectID, before, after models.Issue, at time.Time) Event {
	ev := newEvent(KindIssueTransitioned, actor, after, at)
	ev.PreviousStatus = before.Status
	ev.PreviousManager = before.AssignedToManager
	ev.StatusChanged = before.Status != after.Status
	ev.ManagerAssigned = after.AssignedToManager != nil && !models.SameManager(before.AssignedToManager, after.AssignedToManager)
	if after.Status == models.StatusResolved {
		ev.Resolution = &Resolution{Notes: after.ResolutionNotes, ImageURL: after.ResolutionImage}
	}
	return ev
}
