package routes

import (
	"net/http"

	"civicwatch-be/controllers"

	"github.com/gin-gonic/gin"
)

// Middleware is the shared handler chains the route groups are built from.
type Middleware struct {
	// Auth requires a valid token and an active user.
	Auth []gin.HandlerFunc
	// Optional identifies the caller when a token is present.
	Optional []gin.HandlerFunc
	// ReportLimit throttles issue reports.
	ReportLimit gin.HandlerFunc
}

type Controllers struct {
	Issues     *controllers.IssueController
	Dashboard  *controllers.DashboardController
	Categories *controllers.CategoryController
	Users      *controllers.UserController
}

// Register mounts every API route on r.
func Register(r *gin.Engine, mw Middleware, c Controllers) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	IssueRoutes(r, mw, c.Issues)
	DashboardRoutes(r, mw, c.Dashboard)
	CategoryRoutes(r, mw, c.Categories)
	UserRoutes(r, mw, c.Users)
}
