package routes

import (
	"civicwatch-be/controllers"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, mw Middleware, ic *controllers.IssueController) {
	public := r.Group("/api/issues", mw.Optional...)
	{
		public.GET("", ic.GetAllIssues)
		public.GET("/:id", ic.GetIssue)
		public.GET("/:id/comments", ic.ListComments)
		public.GET("/:id/images", ic.ListImages)
	}

	issue := r.Group("/api/issues", mw.Auth...)
	{
		issue.POST("", mw.ReportLimit, ic.CreateIssue)
		issue.POST("/bulk-transition", ic.BulkTransition)
		issue.DELETE("/:id", ic.DeleteIssue)
		issue.POST("/:id/transition", ic.TransitionIssue)
		issue.POST("/:id/upvote", ic.HandleVoteOnIssue)
		issue.POST("/:id/upvotes/reconcile", ic.ReconcileVotes)
		issue.POST("/:id/comments", ic.AddComment)
		issue.POST("/:id/images", ic.AddImage)
		issue.POST("/:id/geocode", ic.RetriggerGeocode)
	}
}
