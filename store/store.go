// Package store persists issues, categories, upvotes, comments, images and the
// user records the lifecycle core needs. Three backends share one contract:
// MongoDB (default), PostgreSQL and an in-process memory store.
package store

import (
	"context"
	"errors"
	"time"

	"civicwatch-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("issue changed since it was read")
	ErrDuplicate = errors.New("duplicate record")
)

// Expectation is the persisted state a conditional issue update must still match.
type Expectation struct {
	Status  models.IssueStatus
	Manager *primitive.ObjectID
}

// IssueUpdate carries the complete post-transition workflow fields. Nil pointers
// leave the corresponding note fields untouched.
type IssueUpdate struct {
	Status          models.IssueStatus
	Manager         *primitive.ObjectID
	Priority        models.Priority
	InternalNotes   *string
	ResolutionNotes *string
	ResolutionImage *string
	UpdatedAt       time.Time
}

type IssueSort string

const (
	SortNewest IssueSort = "newest"
	SortOldest IssueSort = "oldest"
)

// IssueFilter selects issues for lists, queues and counts. Zero values mean "any".
type IssueFilter struct {
	Statuses        []models.IssueStatus
	ExcludeStatuses []models.IssueStatus
	Priority        models.Priority
	Category        *primitive.ObjectID
	Reporter        *primitive.ObjectID
	Manager         *primitive.ObjectID
	UnassignedOnly  bool
	Search          string
	Sort            IssueSort
	Skip            int
	Limit           int
}

// UserFilter selects users for recipient lists and pickers.
type UserFilter struct {
	Role       models.Role
	StaffOnly  bool
	ActiveOnly bool
}

// UpvoteResult is the state after a toggle.
type UpvoteResult struct {
	Upvoted bool
	Count   int
}

// Store is the full persistence contract. Consumers depend on narrower subsets.
type Store interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error

	CreateCategory(ctx context.Context, category *models.IssueCategory) error
	GetCategory(ctx context.Context, id primitive.ObjectID) (models.IssueCategory, error)
	ListCategories(ctx context.Context) ([]models.IssueCategory, error)
	DeleteCategory(ctx context.Context, id primitive.ObjectID) error

	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id primitive.ObjectID) (models.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error)
	CountIssues(ctx context.Context, filter IssueFilter) (int64, error)
	CountIssuesByStatus(ctx context.Context) (map[models.IssueStatus]int64, error)
	UpdateIssueIfMatches(ctx context.Context, id primitive.ObjectID, expect Expectation, update IssueUpdate) (models.Issue, error)
	SetMunicipalArea(ctx context.Context, id primitive.ObjectID, area string, at time.Time) (bool, error)
	DeleteIssue(ctx context.Context, id primitive.ObjectID) error

	ToggleUpvote(ctx context.Context, issueID, userID primitive.ObjectID, at time.Time) (UpvoteResult, error)
	HasUpvoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error)
	CountUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error)
	ReconcileUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.Comment, error)

	AddImage(ctx context.Context, image *models.IssueImage) error
	ListImages(ctx context.Context, issueID primitive.ObjectID) ([]models.IssueImage, error)
}

func managerValue(id *primitive.ObjectID) any {
	if id == nil {
		return nil
	}
	return *id
}

func cloneID(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
