package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"civicwatch-be/lifecycle"
	"civicwatch-be/models"
	"civicwatch-be/store"

	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	store store.Store
}

func NewCategoryController(s store.Store) *CategoryController {
	return &CategoryController{store: s}
}

func (cc *CategoryController) ListCategories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := cc.store.ListCategories(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (cc *CategoryController) CreateCategory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanManageCategories(actor.Role) {
		forbidden(c, "Only moderators may manage categories")
		return
	}

	var input struct {
		Name        string `json:"name" binding:"required,max=100"`
		Description string `json:"description" binding:"max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category name is required"})
		return
	}

	now := time.Now().UTC()
	category := models.IssueCategory{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := cc.store.CreateCategory(ctx, &category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Category with this name already exists", "code": "category_exists"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// DeleteCategory removes a category; issues in it become uncategorised.
func (cc *CategoryController) DeleteCategory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanManageCategories(actor.Role) {
		forbidden(c, "Only moderators may manage categories")
		return
	}
	categoryID, ok := paramID(c, "category")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := cc.store.DeleteCategory(ctx, categoryID); err != nil {
		respondError(c, notFound(err, "category"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
