package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusReported             IssueStatus = "Reported"
	StatusUnderReview          IssueStatus = "Under Review"
	StatusVerified             IssueStatus = "Verified"
	StatusAssigned             IssueStatus = "Assigned"
	StatusManagerAcknowledged  IssueStatus = "Manager Acknowledged"
	StatusManagerInvestigating IssueStatus = "Manager Investigating"
	StatusWorkInProgress       IssueStatus = "Work In Progress"
	StatusAwaitingResources    IssueStatus = "Awaiting Resources"
	StatusRequiresAssistance   IssueStatus = "Requires Assistance"
	StatusActionTaken          IssueStatus = "Action Taken"
	StatusResolved             IssueStatus = "Resolved"
	StatusClosedNoAction       IssueStatus = "Closed-No Action"
	StatusDuplicate            IssueStatus = "Duplicate"
	StatusInvalid              IssueStatus = "Invalid"
)

// AllStatuses lists every status in typical progression order.
var AllStatuses = []IssueStatus{
	StatusReported,
	StatusUnderReview,
	StatusVerified,
	StatusAssigned,
	StatusManagerAcknowledged,
	StatusManagerInvestigating,
	StatusWorkInProgress,
	StatusAwaitingResources,
	StatusRequiresAssistance,
	StatusActionTaken,
	StatusResolved,
	StatusClosedNoAction,
	StatusDuplicate,
	StatusInvalid,
}

// TerminalStatuses are the statuses from which no further transition is expected.
var TerminalStatuses = []IssueStatus{
	StatusResolved,
	StatusClosedNoAction,
	StatusDuplicate,
	StatusInvalid,
}

// Valid reports whether s is a recognised status.
func (s IssueStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the lifecycle.
func (s IssueStatus) IsTerminal() bool {
	for _, terminal := range TerminalStatuses {
		if s == terminal {
			return true
		}
	}
	return false
}

// Display returns the human readable label used in notifications.
func (s IssueStatus) Display() string {
	if s == "" {
		return "Unknown"
	}
	return string(s)
}

// Priority enum
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Rank orders priorities for work queues: High first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// CoordinatePrecision is the number of decimal places kept for latitude and longitude.
const CoordinatePrecision = 7

// RoundCoordinate rounds a latitude or longitude to CoordinatePrecision places.
func RoundCoordinate(v float64) float64 {
	scale := math.Pow(10, CoordinatePrecision)
	return math.Round(v*scale) / scale
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title             string              `bson:"title" json:"title"`
	Description       string              `bson:"description" json:"description"`
	Reporter          primitive.ObjectID  `bson:"reporter" json:"reporter"`
	Category          *primitive.ObjectID `bson:"category" json:"category,omitempty"`
	Latitude          float64             `bson:"latitude" json:"latitude"`
	Longitude         float64             `bson:"longitude" json:"longitude"`
	ImageURL          string              `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	VideoURL          string              `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	Status            IssueStatus         `bson:"status" json:"status"`
	Priority          Priority            `bson:"priority" json:"priority"`
	AssignedToManager *primitive.ObjectID `bson:"assignedToManager" json:"assignedToManager,omitempty"`
	UpvotesCount      int                 `bson:"upvotesCount" json:"upvotesCount"`
	InternalNotes     string              `bson:"internalNotes,omitempty" json:"internalNotes,omitempty"`
	ResolutionNotes   string              `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	ResolutionImage   string              `bson:"resolutionImage,omitempty" json:"resolutionImage,omitempty"`
	MunicipalArea     string              `bson:"municipalArea" json:"municipalArea"`
	ReportedDate      time.Time           `bson:"reportedDate" json:"reportedDate"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// AssignedTo reports whether the issue is currently assigned to the given user.
func (i Issue) AssignedTo(userID primitive.ObjectID) bool {
	return i.AssignedToManager != nil && *i.AssignedToManager == userID
}

// SameManager compares two optional manager references.
func SameManager(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MaxTitleLength bounds issue titles.
const MaxTitleLength = 255
