package tools

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrUnknownTool is returned when resolving a name that was never
	// registered.
	ErrUnknownTool = errors.New("tool not found")
)

// Registry maps a tool name to its callable contract. It owns the
// definitions exclusively; lookups return copies.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolDefinition
	// order preserves registration order for ListTools
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolDefinition),
	}
}

// Register adds a tool to the registry. Registering a name twice fails with
// ErrDuplicateTool.
func (r *Registry) Register(def ToolDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, exists := r.tools[def.Name]; exists {
		return errors.Wrap(ErrDuplicateTool, def.Name)
	}

	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Resolve retrieves a tool by name.
func (r *Registry) Resolve(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.tools[name]
	if !exists {
		return nil, errors.Wrap(ErrUnknownTool, name)
	}

	// Return a copy to prevent external modifications
	defCopy := def
	return &defCopy, nil
}

// ListTools returns all registered tools in registration order.
func (r *Registry) ListTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// HasTool checks if a tool exists in the registry.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}
