package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/victorstack-ai/codex-agent-harness/config"
	"github.com/victorstack-ai/codex-agent-harness/core"
	"github.com/victorstack-ai/codex-agent-harness/gemini"
	"github.com/victorstack-ai/codex-agent-harness/tools"
	"github.com/victorstack-ai/codex-agent-harness/tracing"
)

// runtime is the wired set of collaborators one harness process shares.
type runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *core.Registry
	policy     func() core.Policy
	supervisor core.Supervisor
	tracer     trace.TracerProvider
	shutdown   func(context.Context) error
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	registry := core.NewRegistry()
	if err := tools.RegisterBuiltins(registry, tools.Options{WorkspaceRoot: cfg.WorkspaceRoot}); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}

	policy, err := newPolicy(ctx, cfg, registry)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		policy:     policy,
		supervisor: newSupervisor(cfg),
		tracer:     noop.NewTracerProvider(),
		shutdown:   func(context.Context) error { return nil },
	}
	if cfg.Tracing.OTLPEndpoint != "" {
		tp, err := tracing.NewProvider(ctx, tracing.Config{
			Endpoint:    cfg.Tracing.OTLPEndpoint,
			Protocol:    cfg.Tracing.OTLPProtocol,
			Insecure:    cfg.Tracing.Insecure,
			ServiceName: cfg.Tracing.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
		rt.tracer = tp
		rt.shutdown = tp.Shutdown
		logger.Info("exporting spans", "endpoint", cfg.Tracing.OTLPEndpoint, "protocol", cfg.Tracing.OTLPProtocol)
	}
	return rt, nil
}

// close flushes pending spans.
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.shutdown(ctx); err != nil {
		rt.logger.Warn("tracer shutdown failed", "error", err)
	}
}

func newPolicy(ctx context.Context, cfg config.Config, registry *core.Registry) (func() core.Policy, error) {
	switch cfg.Policy {
	case config.PolicyStub:
		params := cfg.StubParams
		if params == nil {
			params = map[string]any{}
		}
		if err := registry.CheckArgs(cfg.StubTool, params); err != nil {
			return nil, fmt.Errorf("stub policy: %w", err)
		}
		return func() core.Policy {
			return core.ToolThenFinish(cfg.StubTool, params)
		}, nil
	case config.PolicyGemini:
		llm, err := gemini.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("gemini policy: %w", err)
		}
		return func() core.Policy {
			return core.NewLLMPolicy(llm, registry, cfg.SystemContext)
		}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", cfg.Policy)
	}
}

func newSupervisor(cfg config.Config) core.Supervisor {
	var gate core.Supervisor
	switch cfg.Supervisor {
	case config.SupervisorDeny:
		gate = core.RejectAll{}
	case config.SupervisorAllowList:
		gate = core.AllowList(cfg.AllowedTools...)
	default:
		gate = core.DefaultSupervisor{}
	}
	if cfg.ToolRate > 0 {
		burst := max(cfg.ToolBurst, 1)
		gate = core.Chain(gate, core.NewRateLimitSupervisor(rate.Limit(cfg.ToolRate), burst))
	}
	return gate
}

// newAgent builds an agent with its own transcript.
func (rt *runtime) newAgent() *core.Agent {
	return core.NewAgent(rt.registry, rt.policy(),
		core.WithSupervisor(rt.supervisor),
		core.WithLogger(rt.logger),
		core.WithToolTimeout(rt.cfg.ToolTimeout),
		core.WithTracerProvider(rt.tracer),
	)
}
