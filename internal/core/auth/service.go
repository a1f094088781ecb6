package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/baseplate/tracker/config"
	"github.com/baseplate/tracker/internal/core/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidExpiry      = errors.New("invalid expiration date format")
	ErrInvalidInvite      = errors.New("invitation token is missing or invalid")
)

const (
	apiKeyPrefix = "trk_"
	invitePrefix = "inv_"
)

type Service struct {
	repo   *Repository
	config *config.JWTConfig
}

func NewService(repo *Repository, cfg *config.JWTConfig) *Service {
	return &Service{repo: repo, config: cfg}
}

type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// User authentication
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user *User
	switch {
	case existing == nil:
		user = &User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: string(hash),
			Name:         req.Name,
			Status:       StatusActive,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, ErrUserExists
			}
			return nil, err
		}
	case existing.Status == StatusInvited:
		// Accounts created implicitly by a membership invite are claimed
		// with the token issued at invite time.
		if !validInvite(existing, req.InviteToken) {
			return nil, ErrInvalidInvite
		}
		existing.PasswordHash = string(hash)
		existing.ClaimHash = ""
		existing.Name = req.Name
		existing.Status = StatusActive
		if err := s.repo.UpdateUser(ctx, existing); err != nil {
			return nil, err
		}
		user = existing
	default:
		return nil, ErrUserExists
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// FindOrCreateByEmail returns the account for email, creating an invited
// account without credentials when none exists. Repeated calls with the
// same email return the same account.
func (s *Service) FindOrCreateByEmail(ctx context.Context, email, name string) (*User, error) {
	email = normalizeEmail(email)
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil || user != nil {
		return user, err
	}

	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = &User{
		ID:     uuid.NewString(),
		Email:  email,
		Name:   name,
		Status: StatusInvited,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent invite for the same email.
			return s.repo.GetUserByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}

// IssueInviteToken rotates the claim token of an invited account and returns
// it. Active accounts get an empty token.
func (s *Service) IssueInviteToken(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrNotFound
	}
	if user.Status != StatusInvited {
		return "", nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := invitePrefix + hex.EncodeToString(raw)
	user.ClaimHash = hashKey(token)
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to store invite token: %w", err)
	}
	return token, nil
}

func validInvite(user *User, token string) bool {
	if user.ClaimHash == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashKey(token)), []byte(user.ClaimHash)) == 1
}

func (s *Service) GenerateToken(user *User) (string, error) {
	return s.generateToken(user)
}

func (s *Service) generateToken(user *User) (string, error) {
	claims := JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.ExpirationDuration())),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, ErrUnauthorized
}

// API Key management
func (s *Service) CreateAPIKey(ctx context.Context, workspaceID, userID string, req *CreateAPIKeyRequest) (*CreateAPIKeyResponse, error) {
	rawKey := make([]byte, 32)
	if _, err := rand.Read(rawKey); err != nil {
		return nil, err
	}
	keyString := apiKeyPrefix + hex.EncodeToString(rawKey)

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpiry, err)
		}
		expiresAt = &t
	}

	apiKey := &APIKey{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Name:        req.Name,
		KeyHash:     hashKey(keyString),
		ExpiresAt:   expiresAt,
	}

	if err := s.repo.CreateAPIKey(ctx, apiKey); err != nil {
		return nil, err
	}

	return &CreateAPIKeyResponse{
		APIKey: apiKey,
		Key:    keyString,
	}, nil
}

func (s *Service) ValidateAPIKey(ctx context.Context, keyString string) (*APIKey, error) {
	apiKey, err := s.repo.GetAPIKeyByHash(ctx, hashKey(keyString))
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, ErrUnauthorized
	}

	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return nil, ErrUnauthorized
	}

	// Update last used
	go s.repo.UpdateAPIKeyLastUsed(context.Background(), apiKey.ID)

	return apiKey, nil
}

func (s *Service) GetAPIKeys(ctx context.Context, workspaceID string) ([]*APIKey, error) {
	return s.repo.GetAPIKeysByWorkspaceID(ctx, workspaceID)
}

func (s *Service) DeleteAPIKey(ctx context.Context, workspaceID, id string) error {
	if err := s.repo.DeleteAPIKey(ctx, workspaceID, id); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
