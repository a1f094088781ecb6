package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseplate/tracker/config"
	"github.com/baseplate/tracker/internal/storage"
	"github.com/baseplate/tracker/internal/storage/memory"
)

func newTestService() (*Service, *Repository) {
	repo := NewRepository(memory.NewStore(storage.Tables))
	return NewService(repo, &config.JWTConfig{Secret: "test-secret", ExpirationHours: 1}), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, &RegisterRequest{Email: "Ada@Example.com", Password: "password123", Name: "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, StatusActive, resp.User.Status)

	login, err := svc.Login(ctx, &LoginRequest{Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = svc.Login(ctx, &LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Email: "ada@example.com", Password: "password123", Name: "Ada"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "ada@example.com", Password: "password456", Name: "Other"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_ClaimsInvitedAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	invited, err := svc.FindOrCreateByEmail(ctx, "grace@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StatusInvited, invited.Status)
	assert.Equal(t, "grace", invited.Name)

	_, err = svc.Login(ctx, &LoginRequest{Email: "grace@example.com", Password: "anything1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "invited accounts have no password")

	token, err := svc.IssueInviteToken(ctx, invited.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resp, err := svc.Register(ctx, &RegisterRequest{Email: "grace@example.com", Password: "password123", Name: "Grace", InviteToken: token})
	require.NoError(t, err)
	assert.Equal(t, invited.ID, resp.User.ID)
	assert.Equal(t, StatusActive, resp.User.Status)
	assert.Empty(t, resp.User.ClaimHash)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "grace@example.com", Password: "password456", Name: "Again", InviteToken: token})
	assert.ErrorIs(t, err, ErrUserExists, "a claimed account cannot be claimed twice")

	active, err := svc.IssueInviteToken(ctx, invited.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRegister_InvitedAccountNeedsItsToken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	invited, err := svc.FindOrCreateByEmail(ctx, "grace@example.com", "Grace")
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "grace@example.com", Password: "password123", Name: "Mallory"})
	assert.ErrorIs(t, err, ErrInvalidInvite, "no token issued yet")

	first, err := svc.IssueInviteToken(ctx, invited.ID)
	require.NoError(t, err)
	second, err := svc.IssueInviteToken(ctx, invited.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, token := range []string{"", "inv_guess", first} {
		_, err = svc.Register(ctx, &RegisterRequest{Email: "grace@example.com", Password: "password123", Name: "Mallory", InviteToken: token})
		assert.ErrorIs(t, err, ErrInvalidInvite, "token %q", token)
	}

	_, err = svc.Login(ctx, &LoginRequest{Email: "grace@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "failed claims leave the account untouched")

	_, err = svc.Register(ctx, &RegisterRequest{Email: "grace@example.com", Password: "password123", Name: "Grace", InviteToken: second})
	assert.NoError(t, err)
}

func TestFindOrCreateByEmail_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.FindOrCreateByEmail(ctx, "ada@example.com", "Ada")
	require.NoError(t, err)
	second, err := svc.FindOrCreateByEmail(ctx, " ADA@example.com ", "Someone Else")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada", second.Name)
}

func TestValidateToken(t *testing.T) {
	svc, _ := newTestService()

	token, err := svc.GenerateToken(&User{ID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = svc.ValidateToken(token + "x")
	assert.Error(t, err)
}

func TestValidateToken_RejectsOtherSecret(t *testing.T) {
	svc, _ := newTestService()

	claims := JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	svc, _ := newTestService()

	claims := JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)
}

func TestAPIKeys(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateAPIKey(ctx, "ws-1", "user-1", &CreateAPIKeyRequest{Name: "ci"})
	require.NoError(t, err)
	assert.Contains(t, created.Key, apiKeyPrefix)
	assert.NotEqual(t, created.Key, created.APIKey.KeyHash)

	key, err := svc.ValidateAPIKey(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", key.WorkspaceID)
	assert.Equal(t, "user-1", key.UserID)

	_, err = svc.ValidateAPIKey(ctx, "trk_unknown")
	assert.ErrorIs(t, err, ErrUnauthorized)

	keys, err := svc.GetAPIKeys(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	assert.ErrorIs(t, svc.DeleteAPIKey(ctx, "ws-2", key.ID), ErrNotFound, "keys are scoped to their workspace")
	require.NoError(t, svc.DeleteAPIKey(ctx, "ws-1", key.ID))

	keys, err = svc.GetAPIKeys(ctx, "ws-1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestValidateAPIKey_Expired(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	created, err := svc.CreateAPIKey(ctx, "ws-1", "user-1", &CreateAPIKeyRequest{Name: "old", ExpiresAt: &past})
	require.NoError(t, err)

	_, err = svc.ValidateAPIKey(ctx, created.Key)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreateAPIKey_BadExpiry(t *testing.T) {
	svc, _ := newTestService()
	bad := "tomorrow"

	_, err := svc.CreateAPIKey(context.Background(), "ws-1", "user-1", &CreateAPIKeyRequest{Name: "x", ExpiresAt: &bad})
	assert.ErrorIs(t, err, ErrInvalidExpiry)
}
