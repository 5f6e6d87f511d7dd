package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of platform roles.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleModerator Role = "moderator"
	RoleManager   Role = "manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCitizen || r == RoleModerator || r == RoleManager
}

// NormalizeRole maps unknown values to the least privileged role.
func NormalizeRole(role string) Role {
	switch Role(role) {
	case RoleCitizen, RoleModerator, RoleManager:
		return Role(role)
	default:
		return RoleCitizen
	}
}

// User is the external identity consumed by the core. Login is handled elsewhere.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Role      Role               `bson:"role" json:"role"`
	IsStaff   bool               `bson:"isStaff" json:"isStaff"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u User) IsManager() bool {
	return u.Role == RoleManager
}

func (u User) IsModerator() bool {
	return u.Role == RoleModerator
}

// DisplayName falls back to the email when no name was recorded.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
