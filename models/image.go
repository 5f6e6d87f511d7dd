package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueImage is an extra picture attached to an issue. Only the URL is stored.
type IssueImage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Issue     primitive.ObjectID `bson:"issue" json:"issue"`
	URL       string             `bson:"url" json:"url"`
	Caption   string             `bson:"caption,omitempty" json:"caption,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
