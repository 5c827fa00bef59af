package core

import (
	"context"
	"maps"
	"sync"
)

// Policy chooses the next action from the current transcript.
type Policy interface {
	Decide(ctx context.Context, state *AgentState) (Action, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, state *AgentState) (Action, error)

func (f PolicyFunc) Decide(ctx context.Context, state *AgentState) (Action, error) {
	return f(ctx, state)
}

// ToolThenFinish calls the named tool once per prompt: it calls the tool while
// the latest transcript entry is the user's prompt and finishes otherwise.
func ToolThenFinish(name string, params map[string]any) Policy {
	params = maps.Clone(params)
	return PolicyFunc(func(_ context.Context, state *AgentState) (Action, error) {
		if last, ok := state.Last(); ok && last.Role == RoleUser {
			return CallTool(name, params), nil
		}
		return Finish(), nil
	})
}

// ScriptedPolicy replays a fixed sequence of actions and finishes once it is exhausted.
type ScriptedPolicy struct {
	mu      sync.Mutex
	actions []Action
	next    int
}

func NewScriptedPolicy(actions ...Action) *ScriptedPolicy {
	return &ScriptedPolicy{actions: actions}
}

func (p *ScriptedPolicy) Decide(context.Context, *AgentState) (Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.actions) {
		return Finish(), nil
	}
	action := p.actions[p.next]
	p.next++
	return action, nil
}

// Remaining reports how many scripted actions have not been replayed yet.
func (p *ScriptedPolicy) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions) - p.next
}
