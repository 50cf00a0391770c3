// Package agent contains the capability registry, the task executor
// that enforces the task input/output contract, and the built-in stub
// capability used for dry runs and tests.
package agent

import (
	"sort"
	"sync"

	"github.com/scscodes/conductor/internal/core"
)

// Registry is a thread-safe in-memory capability registry.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.AgentCapability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]core.AgentCapability)}
}

// Register adds a capability. Registering a duplicate name fails.
func (r *Registry) Register(agent core.AgentCapability) error {
	if agent == nil || agent.Name() == "" {
		return core.ErrValidation("AGENT_NAME_REQUIRED", "agent capability must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := agent.Name()
	if _, exists := r.agents[name]; exists {
		return core.ErrValidation("AGENT_ALREADY_REGISTERED", "agent already registered: "+name)
	}
	r.agents[name] = agent
	return nil
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (core.AgentCapability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]
	if !ok {
		return nil, core.ErrNotFound("agent", name)
	}
	return agent, nil
}

// List returns registered capability names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify that Registry implements core.AgentRegistry.
var _ core.AgentRegistry = (*Registry)(nil)
