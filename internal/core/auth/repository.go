package auth

import (
	"context"
	"time"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/storage"
)

type Repository struct {
	users   store.Model
	apiKeys store.Model
}

func NewRepository(p store.Provider) *Repository {
	return &Repository{
		users:   p.Model(storage.TableUsers),
		apiKeys: p.Model(storage.TableAPIKeys),
	}
}

// User methods
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	rec, err := r.users.Create(ctx, store.Record{
		"id":            user.ID,
		"email":         user.Email,
		"password_hash": nullable(user.PasswordHash),
		"claim_hash":    nullable(user.ClaimHash),
		"name":          user.Name,
		"status":        user.Status,
	})
	if err != nil {
		return err
	}
	user.ID = rec.ID()
	user.CreatedAt = timeField(rec, "created_at")
	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	rec, err := r.users.FindFirst(ctx, store.Query{Where: store.Eq{Field: "email", Value: email}})
	if err != nil {
		return nil, err
	}
	return userFromRecord(rec), nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	rec, err := r.users.FindFirst(ctx, store.Query{Where: store.Eq{Field: "id", Value: id}})
	if err != nil {
		return nil, err
	}
	return userFromRecord(rec), nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *User) error {
	_, err := r.users.Update(ctx, user.ID, store.Record{
		"email":         user.Email,
		"password_hash": nullable(user.PasswordHash),
		"claim_hash":    nullable(user.ClaimHash),
		"name":          user.Name,
		"status":        user.Status,
	})
	return err
}

// API Key methods
func (r *Repository) CreateAPIKey(ctx context.Context, key *APIKey) error {
	data := store.Record{
		"id":           key.ID,
		"workspace_id": key.WorkspaceID,
		"user_id":      key.UserID,
		"name":         key.Name,
		"key_hash":     key.KeyHash,
	}
	if key.ExpiresAt != nil {
		data["expires_at"] = *key.ExpiresAt
	}
	rec, err := r.apiKeys.Create(ctx, data)
	if err != nil {
		return err
	}
	key.ID = rec.ID()
	key.CreatedAt = timeField(rec, "created_at")
	return nil
}

func (r *Repository) GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	rec, err := r.apiKeys.FindFirst(ctx, store.Query{Where: store.Eq{Field: "key_hash", Value: hash}})
	if err != nil {
		return nil, err
	}
	return apiKeyFromRecord(rec), nil
}

func (r *Repository) GetAPIKeysByWorkspaceID(ctx context.Context, workspaceID string) ([]*APIKey, error) {
	rows, err := r.apiKeys.FindMany(ctx, store.Query{
		Where:   store.Eq{Field: "workspace_id", Value: workspaceID},
		OrderBy: []store.Order{{Field: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	keys := make([]*APIKey, 0, len(rows))
	for _, rec := range rows {
		keys = append(keys, apiKeyFromRecord(rec))
	}
	return keys, nil
}

func (r *Repository) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	_, err := r.apiKeys.Update(ctx, id, store.Record{"last_used_at": time.Now().UTC()})
	return err
}

// DeleteAPIKey removes the key only when it belongs to workspaceID.
func (r *Repository) DeleteAPIKey(ctx context.Context, workspaceID, id string) error {
	rec, err := r.apiKeys.FindFirst(ctx, store.Query{Where: store.All(
		store.Eq{Field: "id", Value: id},
		store.Eq{Field: "workspace_id", Value: workspaceID},
	)})
	if err != nil {
		return err
	}
	if rec == nil {
		return store.ErrNoRecord
	}
	return r.apiKeys.Delete(ctx, id)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
