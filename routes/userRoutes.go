package routes

import (
	"civicwatch-be/controllers"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine, mw Middleware, uc *controllers.UserController) {
	users := r.Group("/api/users", mw.Auth...)
	{
		users.GET("/me", uc.Me)
		users.GET("/managers", uc.ListManagers)
		users.POST("", uc.CreateUser)
	}
}
