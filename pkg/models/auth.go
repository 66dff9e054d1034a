package models

import (
	"time"
)

// User is an authenticated operator identity.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Roles    []string `json:"roles,omitempty"`
}

// Token is an issued pair of interactive-session JWTs.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthConfig carries the signing material for both token classes. Agent
// tokens use an independent key and a much longer expiry than interactive
// user tokens.
type AuthConfig struct {
	JWTSecret     string        `json:"jwt_secret"`
	JWTExpiration time.Duration `json:"jwt_expiration"`

	AgentSecret     string        `json:"agent_secret"`
	AgentExpiration time.Duration `json:"agent_expiration"`

	// LocalUsers maps username to bcrypt password hash.
	LocalUsers map[string]string `json:"local_users"`
	AdminUsers []string          `json:"admin_users,omitempty"`
}
