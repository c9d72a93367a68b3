package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActorRole distinguishes the two authenticated actor kinds.
type ActorRole string

const (
	RoleSchool     ActorRole = "SCHOOL"
	RoleSuperAdmin ActorRole = "SUPERADMIN"
)

// LoginRequest holds credentials for authenticating an actor.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and actor info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	Actor       ActorInfo `json:"actor"`
	IssuedAt    time.Time `json:"issued_at"`
}

// ActorInfo describes the authenticated actor in responses.
type ActorInfo struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  ActorRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens. ActorID is either a
// school id or a super-admin id depending on Role.
type JWTClaims struct {
	ActorID string    `json:"actor_id"`
	Role    ActorRole `json:"role"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	jwt.RegisteredClaims
}
