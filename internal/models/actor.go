package models

import "github.com/golang-jwt/jwt/v5"

// ActorType represents the class of authenticated caller.
type ActorType string

const (
	ActorStudent ActorType = "STUDENT"
	ActorCompany ActorType = "COMPANY"
	ActorAdmin   ActorType = "ADMIN"
)

// Valid reports whether the actor type is one of the known classes.
func (t ActorType) Valid() bool {
	switch t {
	case ActorStudent, ActorCompany, ActorAdmin:
		return true
	}
	return false
}

// ActorClaims represents the JWT payload supplied by the identity provider.
// The document core trusts these claims; it never authenticates callers itself.
type ActorClaims struct {
	UserID   string    `json:"user_id"`
	Role     ActorType `json:"role"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the actor has administrator privileges.
func (c *ActorClaims) IsAdmin() bool {
	return c != nil && c.Role == ActorAdmin
}
