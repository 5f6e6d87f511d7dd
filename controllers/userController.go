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

type UserController struct {
	store store.Store
}

func NewUserController(s store.Store) *UserController {
	return &UserController{store: s}
}

func (uc *UserController) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, actor)
}

// ListManagers returns active managers for the assignment picker.
func (uc *UserController) ListManagers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanAssignManager(actor.Role) {
		forbidden(c, "Only moderators may list managers")
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	managers, err := uc.store.ListUsers(ctx, store.UserFilter{Role: models.RoleManager, ActiveOnly: true})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, managers)
}

// CreateUser provisions a platform user record. Credentials live with the
// identity provider; only the profile and role are stored here.
func (uc *UserController) CreateUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !lifecycle.CanAssignManager(actor.Role) {
		forbidden(c, "Only moderators may provision users")
		return
	}

	var input struct {
		Name  string `json:"name" binding:"max=50"`
		Email string `json:"email" binding:"required,email"`
		Role  string `json:"role" binding:"required,oneof=citizen moderator manager"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.NormalizeRole(input.Role)
	now := time.Now().UTC()
	user := models.User{
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Role:      role,
		IsStaff:   role != models.RoleCitizen,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := uc.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists", "code": "user_exists"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
