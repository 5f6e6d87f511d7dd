// Package controllers exposes the issue lifecycle over HTTP.
package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"civicwatch-be/lifecycle"
	"civicwatch-be/middlewares"
	"civicwatch-be/models"
	"civicwatch-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

// Publisher hands committed lifecycle events to their consumers.
type Publisher interface {
	Publish(ev lifecycle.Event)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError renders domain errors with their status and code; anything
// else is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	if de, ok := models.AsDomainError(err); ok {
		body := gin.H{"error": de.Message, "code": de.Code}
		if de.Details != nil {
			body["details"] = de.Details
		}
		c.JSON(de.Status, body)
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "code": "not_found"})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Already exists", "code": "duplicate"})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

// requireActor fetches the authenticated user or writes a 401.
func requireActor(c *gin.Context) (models.User, bool) {
	actor, ok := middlewares.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return models.User{}, false
	}
	return actor, true
}

// paramID parses the :id path parameter or writes a 400.
func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func optionalID(hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, gin.H{"error": message, "code": "forbidden"})
}
