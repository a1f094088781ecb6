package action

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_PostsEnvelope(t *testing.T) {
	var got Request
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/workspaces/acme/actions", r.URL.Path)
		assert.Equal(t, "ApiKey trk_secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"l1","name":"Bug"}}`))
	})

	c := NewHTTPClient(srv.URL+"/", "acme", Credential{Scheme: "ApiKey", Token: "trk_secret"}, time.Second)
	res := c.Do(context.Background(), Request{Action: "labels.create", Data: map[string]any{"name": "Bug"}})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "labels.create", got.Action)
	assert.Equal(t, "Bug", got.Data["name"])
	assert.Equal(t, "l1", res.Record()["id"])
}

func TestHTTPClient_DefaultsToBearer(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"a"},{"id":"b"},"junk"],"meta":{"page":1,"limit":20,"total":2,"totalPages":1}}`))
	})

	res := NewHTTPClient(srv.URL, "acme", Credential{Token: "jwt"}, 0).Do(context.Background(), Request{Action: "labels.list"})

	require.True(t, res.Success)
	assert.Len(t, res.Records(), 2)
	require.NotNil(t, res.Meta)
	assert.Equal(t, 2, res.Meta.Total)
}

func TestHTTPClient_ServerFailureKeepsDetail(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"error":"cannot delete workflow state \"Todo\": 3 work items still use it","count":3}`))
	})

	res := NewHTTPClient(srv.URL, "acme", Credential{Token: "t"}, time.Second).Do(context.Background(), Request{Action: "workflow_states.delete", ResourceID: "s1"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "3 work items")
	require.NotNil(t, res.Count)
	assert.Equal(t, 3, *res.Count)
}

func TestHTTPClient_NonJSONBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	res := NewHTTPClient(srv.URL, "acme", Credential{Token: "t"}, time.Second).Do(context.Background(), Request{Action: "labels.list"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "HTTP 502")
	assert.Contains(t, res.Error, "upstream down")
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	res := NewHTTPClient(url, "acme", Credential{Token: "t"}, time.Second).Do(context.Background(), Request{Action: "labels.list"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "labels.list")
}

func TestHTTPClient_CanceledContext(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewHTTPClient(srv.URL, "acme", Credential{Token: "t"}, time.Second).Do(ctx, Request{Action: "labels.list"})
	assert.False(t, res.Success)
}

func TestRegistry_GetCachesPerWorkspace(t *testing.T) {
	built := map[string]int{}
	reg := NewRegistry(func(workspace string) Client {
		built[workspace]++
		return NewHTTPClient("http://localhost", workspace, Credential{Token: "t"}, 0)
	})

	a := reg.Get("acme")
	assert.Same(t, a, reg.Get("acme"))
	assert.NotSame(t, a, reg.Get("globex"))
	assert.Equal(t, 2, reg.Len())

	reg.Evict("acme")
	assert.Equal(t, 1, reg.Len())
	assert.NotSame(t, a, reg.Get("acme"))
	assert.Equal(t, 2, built["acme"])

	reg.EvictAll()
	assert.Zero(t, reg.Len())
}
