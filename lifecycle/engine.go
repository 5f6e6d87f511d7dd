// Package lifecycle validates and applies issue state changes and returns the
// events that describe them. Publishing those events is left to the caller.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"civicwatch-be/models"
	"civicwatch-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultMaxAttempts = 3

type issueStore interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetCategory(ctx context.Context, id primitive.ObjectID) (models.IssueCategory, error)
	GetIssue(ctx context.Context, id primitive.ObjectID) (models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	UpdateIssueIfMatches(ctx context.Context, id primitive.ObjectID, expect store.Expectation, update store.IssueUpdate) (models.Issue, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
}

type Engine struct {
	store       issueStore
	now         func() time.Time
	maxAttempts int
}

func NewEngine(s issueStore) *Engine {
	return &Engine{
		store:       s,
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
	}
}

// SetClock replaces the time source used for timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// TransitionRequest is a requested change. Zero values leave a field as it is.
type TransitionRequest struct {
	Status          models.IssueStatus
	AssignManager   *primitive.ObjectID
	Unassign        bool
	Priority        models.Priority
	InternalNotes   *string
	ResolutionNotes *string
	ResolutionImage *string
}

func (r TransitionRequest) empty() bool {
	return r.Status == "" && r.AssignManager == nil && !r.Unassign && r.Priority == "" &&
		r.InternalNotes == nil && r.ResolutionNotes == nil && r.ResolutionImage == nil
}

// ApplyTransition reads the persisted issue, checks the actor's capabilities
// against it and commits with a compare-and-swap on status and manager. A lost
// race re-reads and re-validates.
func (e *Engine) ApplyTransition(ctx context.Context, issueID primitive.ObjectID, actor models.User, req TransitionRequest) (models.Issue, Event, error) {
	if err := e.checkRequest(ctx, req); err != nil {
		return models.Issue{}, Event{}, err
	}

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		current, err := e.store.GetIssue(ctx, issueID)
		if errors.Is(err, store.ErrNotFound) {
			return models.Issue{}, Event{}, models.NotFoundError("issue")
		}
		if err != nil {
			return models.Issue{}, Event{}, fmt.Errorf("load issue: %w", err)
		}

		update, err := e.plan(current, actor, req)
		if err != nil {
			return models.Issue{}, Event{}, err
		}

		updated, err := e.store.UpdateIssueIfMatches(ctx, issueID,
			store.Expectation{Status: current.Status, Manager: current.AssignedToManager}, update)
		if errors.Is(err, store.ErrConflict) {
			log.Printf("[LIFECYCLE] issue %s changed during transition, retrying (attempt %d)", issueID.Hex(), attempt+1)
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return models.Issue{}, Event{}, models.NotFoundError("issue")
		}
		if err != nil {
			return models.Issue{}, Event{}, fmt.Errorf("update issue: %w", err)
		}

		ev := transitionEvent(actor.ID, current, updated, update.UpdatedAt)
		if ev.Changed() {
			log.Printf("[LIFECYCLE] issue %s: %s -> %s by %s", issueID.Hex(), ev.PreviousStatus, ev.NewStatus, actor.ID.Hex())
		}
		if ev.StatusChanged && ev.NewStatus.IsTerminal() {
			log.Printf("[LIFECYCLE] issue %s closed as %s", issueID.Hex(), ev.NewStatus)
		}
		return updated, ev, nil
	}

	return models.Issue{}, Event{}, models.ConflictError("concurrent_update", "issue kept changing, try again")
}

func (e *Engine) checkRequest(ctx context.Context, req TransitionRequest) error {
	if req.empty() {
		return models.ValidationError("empty_transition", "nothing to change")
	}
	if req.Status != "" && !req.Status.Valid() {
		return models.ValidationError("unknown_status", fmt.Sprintf("unknown status %q", req.Status))
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return models.ValidationError("unknown_priority", fmt.Sprintf("unknown priority %q", req.Priority))
	}
	if req.AssignManager != nil && req.Unassign {
		return models.ValidationError("conflicting_assignment", "cannot assign and unassign in one request")
	}
	if req.AssignManager != nil {
		assignee, err := e.store.GetUser(ctx, *req.AssignManager)
		if errors.Is(err, store.ErrNotFound) {
			return models.NotFoundError("manager")
		}
		if err != nil {
			return fmt.Errorf("load assignee: %w", err)
		}
		if !assignee.IsManager() {
			return models.ValidationError("assignee_not_manager", "issues can only be assigned to managers")
		}
	}
	return nil
}

// plan turns a request into the complete post-transition state for current.
func (e *Engine) plan(current models.Issue, actor models.User, req TransitionRequest) (store.IssueUpdate, error) {
	if !CanTransition(actor, current) {
		if actor.IsManager() {
			return store.IssueUpdate{}, models.ForbiddenError("not_assigned_manager", "issue is not assigned to you")
		}
		return store.IssueUpdate{}, models.ForbiddenError("role_cannot_transition", "citizens may not change issue state")
	}
	if (req.ResolutionNotes != nil || req.ResolutionImage != nil) && !CanRecordResolution(actor, current) {
		return store.IssueUpdate{}, models.ForbiddenError("resolution_by_assigned_manager", "only the assigned manager may record a resolution")
	}
	if (req.AssignManager != nil || req.Unassign) && !CanAssignManager(actor.Role) {
		return store.IssueUpdate{}, models.ForbiddenError("cannot_assign", "only moderators may change the assigned manager")
	}
	if (req.Priority != "" || req.InternalNotes != nil) && !CanTriage(actor.Role) {
		return store.IssueUpdate{}, models.ForbiddenError("moderator_only_field", "only moderators may change priority or internal notes")
	}

	if req.Status != "" && !CanSetStatus(actor.Role, req.Status) {
		return store.IssueUpdate{}, models.ForbiddenError("status_not_allowed",
			fmt.Sprintf("role %s may not set status %q", actor.Role, req.Status))
	}

	update := store.IssueUpdate{
		Status:          current.Status,
		Manager:         current.AssignedToManager,
		Priority:        current.Priority,
		InternalNotes:   req.InternalNotes,
		ResolutionNotes: req.ResolutionNotes,
		ResolutionImage: req.ResolutionImage,
		UpdatedAt:       e.now(),
	}
	if update.Priority == "" {
		update.Priority = models.PriorityMedium
	}
	if req.Priority != "" {
		update.Priority = req.Priority
	}

	switch {
	case req.AssignManager != nil:
		update.Manager = req.AssignManager
		if req.Status == "" && preAssignmentStatuses[current.Status] {
			update.Status = models.StatusAssigned
		}
	case req.Unassign:
		update.Manager = nil
	}
	if req.Status != "" {
		update.Status = req.Status
	}
	return update, nil
}

// ReportInput carries the citizen-provided fields of a new issue.
type ReportInput struct {
	Title       string
	Description string
	Category    *primitive.ObjectID
	Latitude    *float64
	Longitude   *float64
	ImageURL    string
	VideoURL    string
	Priority    models.Priority
}

// ReportIssue creates an issue in Reported state.
func (e *Engine) ReportIssue(ctx context.Context, reporter models.User, in ReportInput) (models.Issue, Event, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	switch {
	case title == "":
		return models.Issue{}, Event{}, models.ValidationError("title_required", "title is required")
	case len([]rune(title)) > models.MaxTitleLength:
		return models.Issue{}, Event{}, models.ValidationError("title_too_long", fmt.Sprintf("title must be at most %d characters", models.MaxTitleLength))
	case description == "":
		return models.Issue{}, Event{}, models.ValidationError("description_required", "description is required")
	case in.Latitude == nil || in.Longitude == nil:
		return models.Issue{}, Event{}, models.ValidationError("location_required", "latitude and longitude are required")
	case !validCoordinate(*in.Latitude, 90) || !validCoordinate(*in.Longitude, 180):
		return models.Issue{}, Event{}, models.ValidationError("invalid_location", "latitude or longitude out of range")
	case in.Priority != "" && !in.Priority.Valid():
		return models.Issue{}, Event{}, models.ValidationError("unknown_priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}

	if in.Category != nil {
		if _, err := e.store.GetCategory(ctx, *in.Category); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return models.Issue{}, Event{}, models.NotFoundError("category")
			}
			return models.Issue{}, Event{}, fmt.Errorf("load category: %w", err)
		}
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	now := e.now()
	issue := models.Issue{
		Title:        title,
		Description:  description,
		Reporter:     reporter.ID,
		Category:     in.Category,
		Latitude:     models.RoundCoordinate(*in.Latitude),
		Longitude:    models.RoundCoordinate(*in.Longitude),
		ImageURL:     strings.TrimSpace(in.ImageURL),
		VideoURL:     strings.TrimSpace(in.VideoURL),
		Status:       models.StatusReported,
		Priority:     priority,
		ReportedDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateIssue(ctx, &issue); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Issue{}, Event{}, models.NotFoundError("user")
		}
		return models.Issue{}, Event{}, fmt.Errorf("create issue: %w", err)
	}

	log.Printf("[LIFECYCLE] issue %s reported by %s", issue.ID.Hex(), reporter.ID.Hex())
	return issue, newEvent(KindIssueReported, reporter.ID, issue, now), nil
}

// AddComment records a public comment on an issue.
func (e *Engine) AddComment(ctx context.Context, issueID primitive.ObjectID, author models.User, text string) (models.Comment, Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, Event{}, models.ValidationError("comment_required", "comment text is required")
	}

	issue, err := e.store.GetIssue(ctx, issueID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Comment{}, Event{}, models.NotFoundError("issue")
	}
	if err != nil {
		return models.Comment{}, Event{}, fmt.Errorf("load issue: %w", err)
	}

	now := e.now()
	comment := models.Comment{Issue: issueID, Author: author.ID, Text: text, CreatedAt: now}
	if err := e.store.CreateComment(ctx, &comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Comment{}, Event{}, models.NotFoundError("issue")
		}
		return models.Comment{}, Event{}, fmt.Errorf("create comment: %w", err)
	}

	ev := newEvent(KindCommentAdded, author.ID, issue, now)
	ev.Comment = &comment
	return comment, ev, nil
}

func validCoordinate(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}
