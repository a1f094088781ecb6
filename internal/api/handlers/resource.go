package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/internal/api/middleware"
	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/validation"
)

// ResourceHandler exposes every registered resource twice: as REST routes
// under /:workspace/:resource and through the single action endpoint.
type ResourceHandler struct {
	dispatcher *resource.Dispatcher
}

func NewResourceHandler(dispatcher *resource.Dispatcher) *ResourceHandler {
	return &ResourceHandler{dispatcher: dispatcher}
}

// ActionResponse is the action endpoint's envelope.
type ActionResponse struct {
	Success bool                         `json:"success"`
	Data    any                          `json:"data,omitempty"`
	Error   string                       `json:"error,omitempty"`
	Errors  []validation.ValidationError `json:"errors,omitempty"`
	Count   *int                         `json:"count,omitempty"`
	Meta    *resource.Meta               `json:"meta,omitempty"`
}

func (h *ResourceHandler) List(c *gin.Context) {
	h.serve(c, func(rh *resource.Handler) (*resource.Response, error) {
		wc, _ := middleware.GetWorkspaceContext(c)
		return rh.List(c.Request.Context(), wc, resource.ListParamsFromQuery(c.Request.URL.Query()))
	})
}

func (h *ResourceHandler) Get(c *gin.Context) {
	h.serve(c, func(rh *resource.Handler) (*resource.Response, error) {
		wc, _ := middleware.GetWorkspaceContext(c)
		return rh.Get(c.Request.Context(), wc)
	})
}

func (h *ResourceHandler) Create(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.serve(c, func(rh *resource.Handler) (*resource.Response, error) {
		wc, _ := middleware.GetWorkspaceContext(c)
		return rh.Create(c.Request.Context(), wc, store.Record(body))
	})
}

func (h *ResourceHandler) Update(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.serve(c, func(rh *resource.Handler) (*resource.Response, error) {
		wc, _ := middleware.GetWorkspaceContext(c)
		return rh.Update(c.Request.Context(), wc, store.Record(body))
	})
}

func (h *ResourceHandler) Delete(c *gin.Context) {
	h.serve(c, func(rh *resource.Handler) (*resource.Response, error) {
		wc, _ := middleware.GetWorkspaceContext(c)
		return rh.Delete(c.Request.Context(), wc)
	})
}

func (h *ResourceHandler) serve(c *gin.Context, run func(*resource.Handler) (*resource.Response, error)) {
	if _, ok := middleware.GetWorkspaceContext(c); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	rh, err := h.dispatcher.Handler(c.Param("resource"))
	if err != nil {
		// Unknown resource names are indistinguishable from missing items.
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	resp, err := run(rh)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(resp.Status, resp)
}

// Action runs one "<resource>.<operation>" request.
func (h *ResourceHandler) Action(c *gin.Context) {
	wc, ok := middleware.GetWorkspaceContext(c)
	if !ok {
		c.JSON(http.StatusNotFound, ActionResponse{Error: "not found"})
		return
	}

	var req resource.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ActionResponse{Error: err.Error()})
		return
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), wc, req)
	if _, op, perr := resource.ParseAction(req.Action); perr == nil && op.Mutating() {
		zerolog.Ctx(c.Request.Context()).Info().
			Str("action", req.Action).
			Str("resource_id", req.ResourceID).
			Str("caller", wc.CallerID).
			Str("outcome", resource.Outcome(err)).
			Msg("mutation")
	}
	if err != nil {
		body := classify(err)
		if body.Status >= http.StatusInternalServerError {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("action", req.Action).Msg("action failed")
		}
		c.JSON(body.Status, ActionResponse{Error: body.Message, Errors: body.Fields, Count: body.Count})
		return
	}

	c.JSON(resp.Status, ActionResponse{Success: true, Data: resp.Data, Meta: resp.Meta})
}
