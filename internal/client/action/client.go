// Package action is the Go client for the workspace action endpoint. Every
// call is normalized into a Result so callers never branch on transport
// errors separately from server-side failures.
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/validation"
)

// Request is the wire form of one "<resource>.<operation>" call.
type Request = resource.ActionRequest

// Result mirrors the server envelope.
type Result struct {
	Success bool                         `json:"success"`
	Data    any                          `json:"data,omitempty"`
	Error   string                       `json:"error,omitempty"`
	Errors  []validation.ValidationError `json:"errors,omitempty"`
	Count   *int                         `json:"count,omitempty"`
	Meta    *resource.Meta               `json:"meta,omitempty"`
}

// Failure builds an unsuccessful Result from a message.
func Failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Record returns Data as a single item, or nil when Data is not an object.
func (r Result) Record() map[string]any {
	rec, _ := r.Data.(map[string]any)
	return rec
}

// Records returns Data as a list of items, skipping anything that is not an
// object.
func (r Result) Records() []map[string]any {
	list, _ := r.Data.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if rec, ok := v.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Client runs actions against one workspace.
type Client interface {
	Do(ctx context.Context, req Request) Result
}

// Credential is sent as the Authorization header.
type Credential struct {
	Scheme string // "Bearer" or "ApiKey"
	Token  string
}

func (c Credential) header() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}
	return scheme + " " + c.Token
}

// HTTPClient posts actions to /api/workspaces/:workspace/actions.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	credential Credential
}

// NewHTTPClient builds a client for one workspace. A zero timeout leaves the
// transport's default in place.
func NewHTTPClient(baseURL, workspace string, credential Credential, timeout time.Duration) *HTTPClient {
	return NewHTTPClientWith(&http.Client{Timeout: timeout}, baseURL, workspace, credential)
}

// NewHTTPClientWith uses a caller-supplied http.Client, e.g. one wired to an
// httptest server.
func NewHTTPClientWith(httpClient *http.Client, baseURL, workspace string, credential Credential) *HTTPClient {
	return &HTTPClient{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/workspaces/" + url.PathEscape(workspace) + "/actions",
		credential: credential,
	}
}

// Do sends req and decodes the envelope. Transport and decoding failures
// come back as unsuccessful Results.
func (c *HTTPClient) Do(ctx context.Context, req Request) Result {
	body, err := json.Marshal(req)
	if err != nil {
		return Failure("encode %s: %v", req.Action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Failure("%s: %v", req.Action, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.credential.header())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Failure("%s: %v", req.Action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Failure("%s: read response: %v", req.Action, err)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Failure("%s: HTTP %d: %s", req.Action, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("%s: HTTP %d", req.Action, resp.StatusCode)
	}
	return result
}
