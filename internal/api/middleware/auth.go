package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/workspace"
)

const (
	ContextUserID          = "user_id"
	ContextKeyWorkspaceID  = "key_workspace_id"
	ContextWorkspace       = "workspace"
	workspaceParam         = "workspace"
	itemParam              = "id"
	notFoundMessage        = "not found"
	unauthenticatedMessage = "unauthorized"
)

type AuthMiddleware struct {
	authService *auth.Service
	resolver    *workspace.Resolver
}

func NewAuthMiddleware(authService *auth.Service, resolver *workspace.Resolver) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, resolver: resolver}
}

func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		switch strings.ToLower(parts[0]) {
		case "bearer":
			m.handleJWT(c, parts[1])
		case "apikey":
			m.handleAPIKey(c, parts[1])
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unsupported authorization type"})
			return
		}
	}
}

func (m *AuthMiddleware) handleJWT(c *gin.Context, token string) {
	claims, err := m.authService.ValidateToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set(ContextUserID, claims.UserID)
	c.Next()
}

// handleAPIKey authenticates as the key's owner. The key only opens the
// workspace it was issued for.
func (m *AuthMiddleware) handleAPIKey(c *gin.Context, key string) {
	apiKey, err := m.authService.ValidateAPIKey(c.Request.Context(), key)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}

	c.Set(ContextUserID, apiKey.UserID)
	c.Set(ContextKeyWorkspaceID, apiKey.WorkspaceID)
	c.Next()
}

// RequireWorkspace resolves the :workspace path parameter against the
// caller's memberships, carrying the :id parameter along when the route has
// one. Unknown workspaces and workspaces the caller does not belong to get
// the same 404.
func (m *AuthMiddleware) RequireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := GetUserID(c)

		wc, err := m.resolver.ResolveItem(c.Request.Context(), userID, c.Param(workspaceParam), c.Param(itemParam))
		switch {
		case errors.Is(err, workspace.ErrUnauthenticated):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthenticatedMessage})
			return
		case errors.Is(err, workspace.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if keyWorkspace, ok := c.Get(ContextKeyWorkspaceID); ok && keyWorkspace != wc.Workspace.ID {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		}

		c.Set(ContextWorkspace, wc)
		c.Next()
	}
}

func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		wc, ok := GetWorkspaceContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		}
		if !wc.Can(permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// Helper functions to get context values
func GetUserID(c *gin.Context) (string, bool) {
	val, exists := c.Get(ContextUserID)
	if !exists {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

func GetWorkspaceContext(c *gin.Context) (*workspace.Context, bool) {
	val, exists := c.Get(ContextWorkspace)
	if !exists {
		return nil, false
	}
	wc, ok := val.(*workspace.Context)
	return wc, ok && wc != nil
}
