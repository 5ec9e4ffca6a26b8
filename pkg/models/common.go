package models

import (
	"github.com/golang-jwt/jwt/v4"
)

const RoleAuthenticated = `authenticated`

// Claims is the payload of the project's access token. The user id travels in Subject.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type UserMetadata struct {
	FullName string `json:"full_name"`
}

func (c *Claims) UserID() string {
	return c.Subject
}

// Profile is the profile row the claims describe.
func (c *Claims) Profile() Profile {
	p := Profile{ID: c.Subject, Email: c.Email}
	if c.UserMetadata.FullName != "" {
		name := c.UserMetadata.FullName
		p.FullName = &name
	}
	return p
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
