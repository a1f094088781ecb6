package auth

import (
	"time"

	"github.com/baseplate/tracker/internal/core/store"
)

const (
	StatusActive  = "active"
	StatusInvited = "invited"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ClaimHash    string    `json:"-"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type APIKey struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	KeyHash     string     `json:"-"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Request/Response types
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	// InviteToken proves ownership of an invited email.
	InviteToken string `json:"invite_token,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type CreateAPIKeyRequest struct {
	Name      string  `json:"name" binding:"required"`
	ExpiresAt *string `json:"expires_at"`
}

type CreateAPIKeyResponse struct {
	APIKey *APIKey `json:"api_key"`
	Key    string  `json:"key"`
}

func userFromRecord(rec store.Record) *User {
	if rec == nil {
		return nil
	}
	return &User{
		ID:           rec.ID(),
		Email:        rec.String("email"),
		PasswordHash: rec.String("password_hash"),
		ClaimHash:    rec.String("claim_hash"),
		Name:         rec.String("name"),
		Status:       rec.String("status"),
		CreatedAt:    timeField(rec, "created_at"),
	}
}

func apiKeyFromRecord(rec store.Record) *APIKey {
	if rec == nil {
		return nil
	}
	key := &APIKey{
		ID:          rec.ID(),
		WorkspaceID: rec.String("workspace_id"),
		UserID:      rec.String("user_id"),
		Name:        rec.String("name"),
		KeyHash:     rec.String("key_hash"),
		CreatedAt:   timeField(rec, "created_at"),
	}
	if t, ok := rec["expires_at"].(time.Time); ok {
		key.ExpiresAt = &t
	}
	if t, ok := rec["last_used_at"].(time.Time); ok {
		key.LastUsedAt = &t
	}
	return key
}

func timeField(rec store.Record, field string) time.Time {
	t, _ := rec[field].(time.Time)
	return t
}
