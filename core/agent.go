package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/victorstack-ai/codex-agent-harness/core"

// Agent drives the decide/approve/execute loop over one transcript. The
// transcript lives as long as the agent, so consecutive Run calls continue
// the same conversation. Run calls on one agent are serialised.
type Agent struct {
	mu          sync.Mutex
	registry    *Registry
	policy      Policy
	supervisor  Supervisor
	logger      *slog.Logger
	tracer      trace.Tracer
	toolTimeout time.Duration
	state       *AgentState
}

type Option func(*Agent)

// WithSupervisor sets the approval gate. A nil supervisor keeps the default,
// which approves everything.
func WithSupervisor(s Supervisor) Option {
	return func(a *Agent) {
		if s != nil {
			a.supervisor = s
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Agent) {
		if tp != nil {
			a.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithToolTimeout bounds the context handed to each capability. Zero disables the bound.
// Capabilities that ignore their context are not interrupted.
func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.toolTimeout = d
	}
}

// NewAgent returns an agent with an empty transcript. A nil registry is
// replaced by an empty one and a nil policy finishes immediately.
func NewAgent(registry *Registry, policy Policy, opts ...Option) *Agent {
	if registry == nil {
		registry = NewRegistry()
	}
	if policy == nil {
		policy = PolicyFunc(func(context.Context, *AgentState) (Action, error) {
			return Finish(), nil
		})
	}
	agent := &Agent{
		registry:   registry,
		policy:     policy,
		supervisor: DefaultSupervisor{},
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		state:      NewAgentState(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

// State exposes the transcript. Callers must not modify it while a Run is in progress.
func (agent *Agent) State() *AgentState {
	return agent.state
}

func (agent *Agent) Registry() *Registry {
	return agent.registry
}

// Run appends prompt as a user message and then performs up to maxSteps
// steps. It returns the content of the last transcript entry. Tool failures,
// missing tools and supervisor vetoes are recorded in the transcript and
// never returned; the only error is ErrInvalidMaxSteps.
func (agent *Agent) Run(ctx context.Context, prompt string, maxSteps int) (string, error) {
	if maxSteps < 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidMaxSteps, maxSteps)
	}

	agent.mu.Lock()
	defer agent.mu.Unlock()

	ctx, span := agent.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.Int("agent.max_steps", maxSteps),
	))
	defer span.End()

	state := agent.state
	state.incr(MetaRuns, 1)
	state.Append(NewContent(RoleUser, prompt))
	agent.logger.InfoContext(ctx, "agent run started", "max_steps", maxSteps, "history", state.Len())

	steps := 0
	for steps < maxSteps {
		steps++
		state.incr(MetaStepsTotal, 1)

		action, err := agent.decide(ctx)
		if err != nil {
			agent.logger.WarnContext(ctx, "policy failed", "step", steps, "error", err)
			state.Append(NewContent(RoleError, fmt.Sprintf("Policy failed: %v", err)))
			break
		}
		agent.logger.DebugContext(ctx, "agent step", "step", steps, "action", action.Type, "tool", action.Name)

		if action.Type == ActionFinish {
			if action.Answer != "" {
				state.Append(NewContent(RoleAssistant, action.Answer))
			}
			break
		}
		if action.Type != ActionToolCall {
			err := fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
			agent.logger.WarnContext(ctx, "policy returned unknown action", "step", steps, "error", err)
			state.Append(NewContent(RoleError, fmt.Sprintf("Policy failed: %v", err)))
			break
		}
		agent.callTool(ctx, action)
	}

	span.SetAttributes(attribute.Int("agent.steps", steps))
	agent.logger.InfoContext(ctx, "agent run finished", "steps", steps, "history", state.Len())

	last, _ := state.Last()
	return last.Content, nil
}

func (agent *Agent) decide(ctx context.Context) (action Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy panic: %v", r)
		}
	}()
	return agent.policy.Decide(ctx, agent.state)
}

func (agent *Agent) callTool(ctx context.Context, action Action) {
	ctx, span := agent.tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool.name", action.Name),
	))
	defer span.End()

	if !agent.approve(ctx, action) {
		span.SetAttributes(attribute.Bool("tool.approved", false))
		agent.logger.InfoContext(ctx, "tool call rejected by supervisor", "tool", action.Name)
		agent.state.Append(NewContent(RoleSupervisor, fmt.Sprintf("Action %s rejected by supervisor.", action.Name)))
		return
	}
	span.SetAttributes(attribute.Bool("tool.approved", true))

	text, err := agent.invoke(ctx, action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		agent.logger.WarnContext(ctx, "tool call failed", "tool", action.Name, "error", err)
		agent.state.Append(NewContent(RoleError, fmt.Sprintf("Tool %s failed: %v", action.Name, err)))
		return
	}
	agent.state.Append(NewContent(RoleTool, fmt.Sprintf("Tool %s returned: %s", action.Name, text)))
}

// approve consults the supervisor. A panicking supervisor counts as a veto.
func (agent *Agent) approve(ctx context.Context, action Action) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			agent.logger.ErrorContext(ctx, "supervisor panic", "tool", action.Name, "panic", r)
			ok = false
		}
	}()
	return agent.supervisor.Approve(ctx, action.Name, action.Params)
}

// invoke calls the tool and renders its result. Panics from either step are
// returned as a *CapabilityError.
func (agent *Agent) invoke(ctx context.Context, action Action) (text string, err error) {
	if agent.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, agent.toolTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &CapabilityError{Tool: action.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err := agent.registry.Call(ctx, action.Name, action.Params)
	if err != nil {
		if !errors.Is(err, ErrToolNotFound) {
			err = &CapabilityError{Tool: action.Name, Err: err}
		}
		return "", err
	}
	return resultText(result), nil
}
