package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/config"
	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
	"github.com/baseplate/tracker/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Helper to create test context
func createTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	return c, w
}

type authFixture struct {
	middleware *AuthMiddleware
	auth       *auth.Service
	token      string
	userID     string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	st := memory.NewStore(storage.Tables)
	svc := auth.NewService(auth.NewRepository(st), &config.JWTConfig{Secret: "test-secret", ExpirationHours: 1})

	resp, err := svc.Register(context.Background(), &auth.RegisterRequest{Email: "ada@example.com", Password: "password123", Name: "Ada"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := workspace.NewService(st).Create(context.Background(), resp.User.ID, &workspace.CreateWorkspaceRequest{Name: "Acme", Slug: "acme"}); err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	return &authFixture{
		middleware: NewAuthMiddleware(svc, workspace.NewResolver(st)),
		auth:       svc,
		token:      resp.Token,
		userID:     resp.User.ID,
	}
}

// engine mounts the full chain on /w/:workspace/items/:id and echoes the
// resolved context.
func (f *authFixture) engine() *gin.Engine {
	r := gin.New()
	r.GET("/w/:workspace/items/:id", f.middleware.Authenticate(), f.middleware.RequireWorkspace(), func(c *gin.Context) {
		wc, _ := GetWorkspaceContext(c)
		c.JSON(http.StatusOK, gin.H{"workspace": wc.Workspace.Slug, "item": wc.ItemID, "role": wc.Role})
	})
	r.DELETE("/w/:workspace", f.middleware.Authenticate(), f.middleware.RequireWorkspace(),
		f.middleware.RequirePermission(workspace.PermWorkspaceManage), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
	return r
}

func serve(r *gin.Engine, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_RejectsMissingAndMalformed(t *testing.T) {
	f := newAuthFixture(t)
	r := f.engine()

	cases := map[string]string{
		"missing":     "",
		"malformed":   "token-without-scheme",
		"unsupported": "Basic abc",
		"bad token":   "Bearer not-a-jwt",
		"bad key":     "ApiKey trk_nope",
	}
	for name, header := range cases {
		if w := serve(r, http.MethodGet, "/w/acme/items/1", header); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, w.Code)
		}
	}
}

func TestRequireWorkspace_ResolvesMembershipAndItem(t *testing.T) {
	f := newAuthFixture(t)
	w := serve(f.engine(), http.MethodGet, "/w/acme/items/item-1", "Bearer "+f.token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{`"workspace":"acme"`, `"item":"item-1"`, `"role":"ADMIN"`} {
		if !strings.Contains(body, want) {
			t.Errorf("response %s missing %s", body, want)
		}
	}
}

func TestRequireWorkspace_UnknownAndForeignLookAlike(t *testing.T) {
	f := newAuthFixture(t)
	stranger, err := f.auth.Register(context.Background(), &auth.RegisterRequest{Email: "eve@example.com", Password: "password123", Name: "Eve"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r := f.engine()

	unknown := serve(r, http.MethodGet, "/w/nowhere/items/1", "Bearer "+f.token)
	foreign := serve(r, http.MethodGet, "/w/acme/items/1", "Bearer "+stranger.Token)

	if unknown.Code != http.StatusNotFound || foreign.Code != http.StatusNotFound {
		t.Fatalf("expected 404/404, got %d/%d", unknown.Code, foreign.Code)
	}
	if unknown.Body.String() != foreign.Body.String() {
		t.Errorf("bodies differ: %s vs %s", unknown.Body.String(), foreign.Body.String())
	}
}

func TestRequirePermission(t *testing.T) {
	f := newAuthFixture(t)
	if w := serve(f.engine(), http.MethodDelete, "/w/acme", "Bearer "+f.token); w.Code != http.StatusNoContent {
		t.Errorf("admin should pass, got %d", w.Code)
	}

	c, w := createTestContext()
	c.Set(ContextWorkspace, &workspace.Context{CallerID: "u", Role: workspace.RoleGuest})
	f.middleware.RequirePermission(workspace.PermResourceWrite)(c)
	if w.Code != http.StatusForbidden {
		t.Errorf("guest should be refused write, got %d", w.Code)
	}
}

func TestAPIKey_OnlyOpensItsWorkspace(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	created, err := f.auth.CreateAPIKey(ctx, "some-other-workspace", f.userID, &auth.CreateAPIKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if w := serve(f.engine(), http.MethodGet, "/w/acme/items/1", "ApiKey "+created.Key); w.Code != http.StatusNotFound {
		t.Errorf("key for another workspace should get 404, got %d", w.Code)
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := createTestContext()
	if _, ok := GetUserID(c); ok {
		t.Error("GetUserID should return false when user_id is not set")
	}

	c.Set(ContextUserID, "user-1")
	if id, ok := GetUserID(c); !ok || id != "user-1" {
		t.Errorf("GetUserID returned %q, %v", id, ok)
	}

	c.Set(ContextUserID, 42)
	if _, ok := GetUserID(c); ok {
		t.Error("GetUserID should return false for a non-string value")
	}
}

func TestGetWorkspaceContext(t *testing.T) {
	c, _ := createTestContext()
	if _, ok := GetWorkspaceContext(c); ok {
		t.Error("GetWorkspaceContext should return false when not set")
	}

	c.Set(ContextWorkspace, "invalid")
	if _, ok := GetWorkspaceContext(c); ok {
		t.Error("GetWorkspaceContext should return false for an invalid type")
	}
}

func TestAuditMiddleware(t *testing.T) {
	c, _ := createTestContext()
	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	c.Request.Header.Set("User-Agent", "tracker-cli/1.0")
	logger := zerolog.Nop()
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

	AuditMiddleware()(c)

	got := GetAudit(c)
	if got.IP != "203.0.113.7" {
		t.Errorf("IP = %q", got.IP)
	}
	if got.UserAgent != "tracker-cli/1.0" {
		t.Errorf("UserAgent = %q", got.UserAgent)
	}

	c, _ = createTestContext()
	c.Request.Header.Set("X-Real-IP", " 198.51.100.2 ")
	AuditMiddleware()(c)
	if got := GetAudit(c).IP; got != "198.51.100.2" {
		t.Errorf("X-Real-IP: IP = %q", got)
	}

	c, _ = createTestContext()
	if got := GetAudit(c); got != (Audit{}) {
		t.Errorf("expected zero audit, got %+v", got)
	}
}

func TestRequestLogger_AssignsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop(), nil))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := serve(r, http.MethodGet, "/ping", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("request id = %q, want abc", got)
	}
}
