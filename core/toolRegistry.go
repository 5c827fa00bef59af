package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Registry owns the callable tools of a session. Registration is expected to
// happen before any Run starts.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolSpec
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolSpec),
	}
}

// Register inserts spec, replacing any tool with the same name. A replaced
// tool keeps its original position in List.
func (r *Registry) Register(spec ToolSpec) error {
	if err := validate.Struct(spec); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidToolSpec, spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[spec.Name]; !ok {
		r.order = append(r.order, spec.Name)
	}
	r.tools[spec.Name] = spec
	return nil
}

// List returns descriptors of all tools in registration order.
func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name].descriptor())
	}
	return list
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Call invokes the named tool with args and returns its result unchanged.
// Failures of the capability itself are returned as is; the only error the
// registry produces is a *ToolNotFoundError.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	spec, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ToolNotFoundError{Name: name}
	}
	return spec.Capability(ctx, args)
}

// CheckArgs validates args against the schema of the named tool without
// calling it. Tools registered without a schema accept any arguments.
func (r *Registry) CheckArgs(name string, args map[string]any) error {
	r.mu.RLock()
	spec, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &ToolNotFoundError{Name: name}
	}
	if len(spec.Schema) == 0 {
		return nil
	}
	compiled, err := compileSchema(name, spec.Schema)
	if err != nil {
		return err
	}
	_, err = checkArgs(compiled, args)
	return err
}
