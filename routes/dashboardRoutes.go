package routes

import (
	"civicwatch-be/controllers"

	"github.com/gin-gonic/gin"
)

func DashboardRoutes(r *gin.Engine, mw Middleware, dc *controllers.DashboardController) {
	dashboard := r.Group("/api/dashboard", mw.Auth...)
	{
		dashboard.GET("/summary", dc.Summary)
		dashboard.GET("/manager", dc.ManagerQueue)
		dashboard.GET("/activity", dc.Activity)
	}
}
