package core

import (
	"context"
	"fmt"
)

// Subset returns a new registry holding only the named tools of r, in the
// order given. It fails if any name is not registered.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := NewRegistry()
	for _, name := range names {
		spec, ok := r.tools[name]
		if !ok {
			return nil, &ToolNotFoundError{Name: name}
		}
		if _, dup := sub.tools[name]; !dup {
			sub.order = append(sub.order, name)
		}
		sub.tools[name] = spec
	}
	return sub, nil
}

type AgentToolInput struct {
	Input string `json:"input" validate:"required" jsonschema_description:"Natural language task for the delegated agent"`
}

type AgentToolOutput struct {
	Output        string `json:"output"`
	HistoryLength int    `json:"history_length"`
}

// NewAgentTool exposes delegate as a tool. Each call continues the
// delegate's own transcript with a budget of maxSteps. The delegate must not
// be the agent that calls the tool: Run on the same agent would deadlock.
func NewAgentTool(name, description string, delegate *Agent, maxSteps int) (ToolSpec, error) {
	if delegate == nil {
		return ToolSpec{}, fmt.Errorf("%w: %q has no delegate agent", ErrInvalidToolSpec, name)
	}
	return NewTypedTool(name, description, func(ctx context.Context, in AgentToolInput) (AgentToolOutput, error) {
		out, err := delegate.Run(ctx, in.Input, maxSteps)
		if err != nil {
			return AgentToolOutput{}, err
		}
		return AgentToolOutput{Output: out, HistoryLength: delegate.State().Len()}, nil
	})
}
