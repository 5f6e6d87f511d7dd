package controllers

import (
	"context"
	"net/http"
	"strconv"

	"civicwatch-be/dashboard"
	"civicwatch-be/lifecycle"
	"civicwatch-be/models"

	"github.com/gin-gonic/gin"
)

// ActivityFeed lists recently published lifecycle events.
type ActivityFeed interface {
	Recent(ctx context.Context, limit int) ([]lifecycle.Event, error)
}

type DashboardController struct {
	aggregator *dashboard.Aggregator
	activity   ActivityFeed
}

func NewDashboardController(aggregator *dashboard.Aggregator, activity ActivityFeed) *DashboardController {
	return &DashboardController{aggregator: aggregator, activity: activity}
}

func (dc *DashboardController) Summary(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanViewDashboard(actor.Role) {
		forbidden(c, "Dashboard is for staff only")
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	summary, err := dc.aggregator.Summary(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ManagerQueue shows a manager their open work. Moderators may look at any
// manager's queue with ?managerId=.
func (dc *DashboardController) ManagerQueue(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	managerID := actor.ID
	switch actor.Role {
	case models.RoleManager:
	case models.RoleModerator:
		id, err := optionalID(c.Query("managerId"))
		if err != nil || id == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "managerId is required"})
			return
		}
		managerID = *id
	default:
		forbidden(c, "Dashboard is for staff only")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	queue, err := dc.aggregator.ManagerQueue(ctx, managerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"managerId": managerID, "issues": queue, "count": len(queue)})
}

// Activity returns the most recent lifecycle events, newest first.
func (dc *DashboardController) Activity(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanViewDashboard(actor.Role) {
		forbidden(c, "Dashboard is for staff only")
		return
	}
	if dc.activity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Activity feed not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	ctx, cancel := requestContext(c)
	defer cancel()
	events, err := dc.activity.Recent(ctx, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
