package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baseplate/tracker/internal/api/middleware"
	"github.com/baseplate/tracker/internal/core/workspace"
)

type WorkspaceHandler struct {
	workspaceService *workspace.Service
}

func NewWorkspaceHandler(workspaceService *workspace.Service) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req workspace.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.workspaceService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ws)
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memberships, err := h.workspaceService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": memberships})
}

func (h *WorkspaceHandler) Get(c *gin.Context) {
	wc, ok := middleware.GetWorkspaceContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.JSON(http.StatusOK, workspace.Membership{Workspace: wc.Workspace, Role: wc.Role})
}

func (h *WorkspaceHandler) Update(c *gin.Context) {
	wc, ok := middleware.GetWorkspaceContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req workspace.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.workspaceService.Update(c.Request.Context(), wc, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ws)
}

func (h *WorkspaceHandler) Delete(c *gin.Context) {
	wc, ok := middleware.GetWorkspaceContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.workspaceService.Delete(c.Request.Context(), wc); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "workspace deleted"})
}
