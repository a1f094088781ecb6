package action

import (
	"sync"

	"github.com/baseplate/tracker/config"
)

// Registry hands out one Client per workspace slug. Entries live until they
// are evicted, typically on sign-out or when the caller leaves a workspace.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
	build   func(workspace string) Client
}

// NewRegistry returns a Registry that constructs clients with build.
func NewRegistry(build func(workspace string) Client) *Registry {
	return &Registry{clients: make(map[string]Client), build: build}
}

func (r *Registry) Get(workspace string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[workspace]; ok {
		return c
	}
	c := r.build(workspace)
	r.clients[workspace] = c
	return c
}

func (r *Registry) Evict(workspace string) {
	r.mu.Lock()
	delete(r.clients, workspace)
	r.mu.Unlock()
}

func (r *Registry) EvictAll() {
	r.mu.Lock()
	clear(r.clients)
	r.mu.Unlock()
}

// Len reports how many workspaces currently hold a client.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// NewHTTPRegistry serves HTTPClients for baseURL, all sharing credential
// and the configured timeout.
func NewHTTPRegistry(baseURL string, credential Credential, cfg config.ClientConfig) *Registry {
	return NewRegistry(func(workspace string) Client {
		return NewHTTPClient(baseURL, workspace, credential, cfg.Timeout)
	})
}
