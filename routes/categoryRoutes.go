package routes

import (
	"civicwatch-be/controllers"

	"github.com/gin-gonic/gin"
)

func CategoryRoutes(r *gin.Engine, mw Middleware, cc *controllers.CategoryController) {
	r.GET("/api/categories", cc.ListCategories)

	categories := r.Group("/api/categories", mw.Auth...)
	{
		categories.POST("", cc.CreateCategory)
		categories.DELETE("/:id", cc.DeleteCategory)
	}
}
