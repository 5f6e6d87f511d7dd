package middlewares

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"civicwatch-be/models"
	"civicwatch-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const contextActor = "actor"

type userLookup interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// LoadActor resolves the token's user_id to an active user record. Runs after
// AuthMiddleware or OptionalAuth; anonymous requests pass through untouched.
func LoadActor(users userLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get(ContextUserID)
		if !exists {
			c.Next()
			return
		}
		id, err := primitive.ObjectIDFromHex(raw.(string))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		user, err := users.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !user.IsActive) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found or inactive"})
			c.Abort()
			return
		}
		if err != nil {
			log.Printf("Error loading user %s: %v", id.Hex(), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			c.Abort()
			return
		}

		c.Set(contextActor, user)
		c.Next()
	}
}

// Actor returns the user loaded by LoadActor.
func Actor(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(contextActor)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
