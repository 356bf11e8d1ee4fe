package swarm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trellison/waggle/internal/dispatch"
)

// Capability is an executor registered under a name the planner can route
// tasks to. Registration is explicit at startup; there is no import-time
// side-effect registration.
type Capability struct {
	// Name is the routing key planners use in the "agent" field.
	Name string
	// Description tells the operator (and planner prompt) what it does.
	Description string
	// Exec is the task body.
	Exec dispatch.Executor
	// DefaultTimeout applies to tasks that carry no timeout of their own.
	// Zero means no timeout.
	DefaultTimeout time.Duration
}

// Registry maps capability names to executors. It is safe for concurrent
// use; in practice it is populated once during startup and read thereafter.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds a capability. Registering an empty name or a duplicate is
// an error: the table is the single source of routing truth.
func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("capability name must not be empty")
	}
	if c.Exec == nil {
		return fmt.Errorf("capability %q has no executor", c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caps[c.Name]; exists {
		return fmt.Errorf("capability %q already registered", c.Name)
	}
	r.caps[c.Name] = c
	return nil
}

// Lookup returns the executor for a capability name.
func (r *Registry) Lookup(name string) (dispatch.Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[name]
	if !ok {
		return nil, false
	}
	return c.Exec, true
}

// Get returns the full capability descriptor.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[name]
	return c, ok
}

// Names returns all registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
