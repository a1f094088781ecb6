package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/core/workspace"
)

// errorBody is the error half of every JSON response.
type errorBody struct {
	Status  int                          `json:"-"`
	Message string                       `json:"error"`
	Fields  []validation.ValidationError `json:"errors,omitempty"`
	Count   *int                         `json:"count,omitempty"`
}

// classify maps an error onto its status and caller-facing message.
// Unclassified errors become an opaque 500.
func classify(err error) errorBody {
	var rule *resource.BusinessRuleError
	switch {
	case errors.Is(err, workspace.ErrUnauthenticated), errors.Is(err, auth.ErrUnauthorized):
		return errorBody{Status: http.StatusUnauthorized, Message: "unauthorized"}
	case errors.Is(err, resource.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		return errorBody{Status: http.StatusNotFound, Message: "not found"}
	case errors.Is(err, auth.ErrInvalidInvite):
		return errorBody{Status: http.StatusForbidden, Message: err.Error()}
	case errors.Is(err, resource.ErrForbidden), errors.Is(err, workspace.ErrForbidden):
		return errorBody{Status: http.StatusForbidden, Message: "permission denied"}
	case validation.IsValidationError(err):
		return errorBody{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Fields:  validation.GetValidationErrors(err).Errors,
		}
	case errors.Is(err, resource.ErrInvalidRequest),
		errors.Is(err, resource.ErrUnknownResource),
		errors.Is(err, resource.ErrUnknownOperation),
		errors.Is(err, workspace.ErrInvalidSlug):
		return errorBody{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.As(err, &rule):
		body := errorBody{Status: http.StatusConflict, Message: rule.Reason}
		if rule.Count > 0 {
			count := rule.Count
			body.Count = &count
		}
		return body
	case errors.Is(err, workspace.ErrWorkspaceExists), errors.Is(err, auth.ErrUserExists):
		return errorBody{Status: http.StatusConflict, Message: err.Error()}
	}
	return errorBody{Status: http.StatusInternalServerError, Message: resource.ErrPersistence.Error()}
}

// writeError writes err as JSON. Server errors are logged with their detail
// and answered with an opaque message.
func writeError(c *gin.Context, err error) {
	body := classify(err)
	if body.Status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(body.Status, body)
}
