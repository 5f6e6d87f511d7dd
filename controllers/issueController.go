package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"civicwatch-be/engagement"
	"civicwatch-be/lifecycle"
	"civicwatch-be/middlewares"
	"civicwatch-be/models"
	"civicwatch-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Enricher re-runs municipal area lookup for one issue.
type Enricher interface {
	Enrich(ctx context.Context, id primitive.ObjectID) (models.Issue, error)
}

type IssueController struct {
	engine   *lifecycle.Engine
	store    store.Store
	tracker  *engagement.Tracker
	enricher Enricher
	events   Publisher
}

func NewIssueController(engine *lifecycle.Engine, s store.Store, tracker *engagement.Tracker, enricher Enricher, events Publisher) *IssueController {
	return &IssueController{engine: engine, store: s, tracker: tracker, enricher: enricher, events: events}
}

// IssueWithVotes is the API shape of an issue.
type IssueWithVotes struct {
	models.Issue
	Votes        int                    `json:"votes"`
	UserHasVoted bool                   `json:"userHasVoted"`
	CreatedBy    map[string]interface{} `json:"createdBy"`
}

func (ic *IssueController) present(ctx context.Context, issue models.Issue, viewer *models.User) IssueWithVotes {
	out := IssueWithVotes{Issue: issue, Votes: issue.UpvotesCount}
	if viewer == nil || !lifecycle.CanReadInternalNotes(viewer.Role) {
		out.InternalNotes = ""
	}
	if viewer != nil {
		voted, err := ic.tracker.HasUpvoted(ctx, issue.ID, viewer.ID)
		if err != nil {
			log.Printf("Error checking upvote on %s: %v", issue.ID.Hex(), err)
		}
		out.UserHasVoted = voted
	}

	createdBy := map[string]interface{}{"id": issue.Reporter}
	if reporter, err := ic.store.GetUser(ctx, issue.Reporter); err == nil {
		createdBy["name"] = reporter.DisplayName()
	}
	out.CreatedBy = createdBy
	return out
}

func viewer(c *gin.Context) *models.User {
	if actor, ok := middlewares.Actor(c); ok {
		return &actor
	}
	return nil
}

// CreateIssue reports a new issue for the authenticated user.
func (ic *IssueController) CreateIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var input struct {
		Title       string   `json:"title" binding:"required,max=255"`
		Description string   `json:"description" binding:"required"`
		Category    string   `json:"category"`
		Latitude    *float64 `json:"latitude" binding:"required"`
		Longitude   *float64 `json:"longitude" binding:"required"`
		ImageURL    string   `json:"imageUrl" binding:"omitempty,url"`
		VideoURL    string   `json:"videoUrl" binding:"omitempty,url"`
		Priority    string   `json:"priority"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := optionalID(input.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	report := lifecycle.ReportInput{
		Title:       input.Title,
		Description: input.Description,
		Category:    category,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		ImageURL:    input.ImageURL,
		VideoURL:    input.VideoURL,
	}
	if lifecycle.CanTriage(actor.Role) {
		report.Priority = models.Priority(input.Priority)
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	issue, ev, err := ic.engine.ReportIssue(ctx, actor, report)
	if err != nil {
		respondError(c, err)
		return
	}
	ic.events.Publish(ev)

	c.JSON(http.StatusCreated, ic.present(ctx, issue, &actor))
}

// GetAllIssues lists issues with filtering and pagination.
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := store.IssueFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   store.SortNewest,
	}
	if c.Query("sort") == string(store.SortOldest) {
		filter.Sort = store.SortOldest
	}
	if status := c.Query("status"); status != "" && status != "all" {
		if !models.IssueStatus(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		filter.Statuses = []models.IssueStatus{models.IssueStatus(status)}
	}
	if priority := c.Query("priority"); priority != "" && priority != "all" {
		if !models.Priority(priority).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		filter.Priority = models.Priority(priority)
	}
	if category := c.Query("category"); category != "" && category != "all" {
		id, err := optionalID(category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		filter.Category = id
	}

	current := viewer(c)
	if c.Query("mine") == "true" {
		if current == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		filter.Reporter = &current.ID
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	totalCount, err := ic.store.CountIssues(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	filter.Skip = (page - 1) * limit
	filter.Limit = limit
	issues, err := ic.store.ListIssues(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]IssueWithVotes, 0, len(issues))
	for _, issue := range issues {
		out = append(out, ic.present(ctx, issue, current))
	}

	c.JSON(http.StatusOK, gin.H{
		"issues":      out,
		"totalIssues": totalCount,
		"totalPages":  int((totalCount + int64(limit) - 1) / int64(limit)),
		"currentPage": page,
	})
}

// GetIssue returns one issue with its comments and images.
func (ic *IssueController) GetIssue(c *gin.Context) {
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := ic.store.GetIssue(ctx, issueID)
	if err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	comments, err := ic.store.ListComments(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}
	images, err := ic.store.ListImages(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":    ic.present(ctx, issue, viewer(c)),
		"comments": comments,
		"images":   images,
	})
}

// DeleteIssue lets the reporter or a moderator remove an issue.
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := ic.store.GetIssue(ctx, issueID)
	if err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	if !lifecycle.CanDeleteIssue(actor, issue) {
		forbidden(c, "You are not authorized to delete this issue")
		return
	}
	if err := ic.store.DeleteIssue(ctx, issueID); err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

type transitionInput struct {
	Status          string  `json:"status"`
	AssignManager   string  `json:"assignManager"`
	Unassign        bool    `json:"unassign"`
	Priority        string  `json:"priority"`
	InternalNotes   *string `json:"internalNotes"`
	ResolutionNotes *string `json:"resolutionNotes"`
	ResolutionImage *string `json:"resolutionImage" binding:"omitempty,url"`
}

// TransitionIssue applies a status, assignment or triage change.
func (ic *IssueController) TransitionIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}

	var input transitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	manager, err := optionalID(input.AssignManager)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid manager ID"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	issue, ev, err := ic.engine.ApplyTransition(ctx, issueID, actor, lifecycle.TransitionRequest{
		Status:          models.IssueStatus(input.Status),
		AssignManager:   manager,
		Unassign:        input.Unassign,
		Priority:        models.Priority(input.Priority),
		InternalNotes:   input.InternalNotes,
		ResolutionNotes: input.ResolutionNotes,
		ResolutionImage: input.ResolutionImage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ic.events.Publish(ev)

	c.JSON(http.StatusOK, gin.H{
		"issue":   ic.present(ctx, issue, &actor),
		"changed": ev.Changed(),
	})
}

// BulkTransition moves several issues to one status.
func (ic *IssueController) BulkTransition(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var input struct {
		IDs    []string `json:"ids" binding:"required,min=1,max=200"`
		Status string   `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids := make([]primitive.ObjectID, 0, len(input.IDs))
	for _, raw := range input.IDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID " + raw})
			return
		}
		ids = append(ids, id)
	}

	// Bulk runs get a longer deadline than single requests.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()
	results, err := ic.engine.BulkTransition(ctx, actor, ids, models.IssueStatus(input.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(results))
	updated := 0
	for _, r := range results {
		row := gin.H{"id": r.IssueID}
		if r.Err != nil {
			row["error"] = r.Err.Error()
			if de, ok := models.AsDomainError(r.Err); ok {
				row["code"] = de.Code
			}
		} else {
			updated++
			row["status"] = r.Issue.Status
			ic.events.Publish(*r.Event)
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "results": out})
}

// HandleVoteOnIssue toggles the caller's upvote.
func (ic *IssueController) HandleVoteOnIssue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	voted, count, err := ic.tracker.Toggle(ctx, issueID, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Vote removed successfully"
	if voted {
		message = "Vote cast successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      message,
		"voted":        voted,
		"votes":        count,
		"userHasVoted": voted,
	})
}

// ReconcileVotes rebuilds the cached upvote counter from the upvote records.
func (ic *IssueController) ReconcileVotes(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanReconcileUpvotes(actor.Role) {
		forbidden(c, "Only moderators may reconcile upvotes")
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	count, err := ic.tracker.Reconcile(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": count})
}

func (ic *IssueController) ListComments(c *gin.Context) {
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := ic.store.GetIssue(ctx, issueID); err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	comments, err := ic.store.ListComments(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (ic *IssueController) AddComment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	var input struct {
		Text string `json:"text" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	comment, ev, err := ic.engine.AddComment(ctx, issueID, actor, input.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	ic.events.Publish(ev)
	c.JSON(http.StatusCreated, comment)
}

func (ic *IssueController) ListImages(c *gin.Context) {
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := ic.store.GetIssue(ctx, issueID); err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	images, err := ic.store.ListImages(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

// AddImage attaches an image URL to an issue.
func (ic *IssueController) AddImage(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	var input struct {
		URL     string `json:"url" binding:"required,url"`
		Caption string `json:"caption" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	issue, err := ic.store.GetIssue(ctx, issueID)
	if err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	if !lifecycle.CanAttachImage(actor, issue) {
		forbidden(c, "You are not authorized to add images to this issue")
		return
	}

	image := models.IssueImage{
		Issue:     issueID,
		URL:       input.URL,
		Caption:   strings.TrimSpace(input.Caption),
		CreatedAt: time.Now().UTC(),
	}
	if err := ic.store.AddImage(ctx, &image); err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	c.JSON(http.StatusCreated, image)
}

// RetriggerGeocode runs the municipal area lookup again for an issue that has none.
func (ic *IssueController) RetriggerGeocode(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanRetriggerGeocode(actor.Role) {
		forbidden(c, "Only moderators may re-run geocoding")
		return
	}
	issueID, ok := paramID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := ic.enricher.Enrich(ctx, issueID)
	if err != nil {
		respondError(c, notFound(err, "issue"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"municipalArea": issue.MunicipalArea,
		"resolved":      issue.MunicipalArea != "",
	})
}

func notFound(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return models.NotFoundError(entity)
	}
	return err
}
