package core

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/time/rate"
)

// Supervisor approves or vetoes a tool call before it executes.
type Supervisor interface {
	Approve(ctx context.Context, name string, params map[string]any) bool
}

// SupervisorFunc adapts a function to Supervisor.
type SupervisorFunc func(ctx context.Context, name string, params map[string]any) bool

func (f SupervisorFunc) Approve(ctx context.Context, name string, params map[string]any) bool {
	return f(ctx, name, params)
}

// DefaultSupervisor approves every call.
type DefaultSupervisor struct{}

func (DefaultSupervisor) Approve(context.Context, string, map[string]any) bool {
	return true
}

// RejectAll vetoes every call.
type RejectAll struct{}

func (RejectAll) Approve(context.Context, string, map[string]any) bool {
	return false
}

// AllowList approves only the named tools.
func AllowList(names ...string) Supervisor {
	allowed := slices.Clone(names)
	return SupervisorFunc(func(ctx context.Context, name string, _ map[string]any) bool {
		ok := slices.Contains(allowed, name)
		if !ok {
			slog.DebugContext(ctx, "tool not in allow list", "tool", name)
		}
		return ok
	})
}

// Chain approves a call only if every supervisor approves it. Evaluation
// stops at the first veto.
func Chain(supervisors ...Supervisor) Supervisor {
	return SupervisorFunc(func(ctx context.Context, name string, params map[string]any) bool {
		for _, s := range supervisors {
			if !s.Approve(ctx, name, params) {
				return false
			}
		}
		return true
	})
}

// RateLimitSupervisor vetoes calls that exceed a token bucket budget shared by all tools.
type RateLimitSupervisor struct {
	limiter *rate.Limiter
}

func NewRateLimitSupervisor(limit rate.Limit, burst int) *RateLimitSupervisor {
	return &RateLimitSupervisor{limiter: rate.NewLimiter(limit, burst)}
}

func (s *RateLimitSupervisor) Approve(ctx context.Context, name string, _ map[string]any) bool {
	if s.limiter.Allow() {
		return true
	}
	slog.DebugContext(ctx, "tool call rate limited", "tool", name)
	return false
}
