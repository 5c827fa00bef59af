package core

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// scriptFor maps generated ints onto a mix of every step outcome.
func scriptFor(kinds []int) []Action {
	actions := make([]Action, 0, len(kinds))
	for _, k := range kinds {
		switch k % 5 {
		case 0:
			actions = append(actions, CallTool("ok", nil))
		case 1:
			actions = append(actions, CallTool("fails", nil))
		case 2:
			actions = append(actions, CallTool("missing", nil))
		case 3:
			actions = append(actions, CallTool("vetoed", nil))
		case 4:
			actions = append(actions, FinishWithAnswer("done"))
		}
	}
	return actions
}

func propertyAgent(actions []Action) *Agent {
	r := NewRegistry()
	_ = r.Register(ToolSpec{Name: "ok", Capability: func(context.Context, map[string]any) (any, error) { return "fine", nil }})
	_ = r.Register(ToolSpec{Name: "fails", Capability: func(context.Context, map[string]any) (any, error) { return nil, errors.New("nope") }})
	_ = r.Register(ToolSpec{Name: "vetoed", Capability: func(context.Context, map[string]any) (any, error) { return "unreachable", nil }})
	sup := SupervisorFunc(func(_ context.Context, name string, _ map[string]any) bool { return name != "vetoed" })
	return NewAgent(r, NewScriptedPolicy(actions...), WithSupervisor(sup))
}

func TestRunBoundedAppendsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("run appends at most maxSteps entries after the prompt", prop.ForAll(
		func(maxSteps int, kinds []int) bool {
			agent := propertyAgent(scriptFor(kinds))
			out, err := agent.Run(context.Background(), "prompt", maxSteps)
			if err != nil {
				return false
			}
			history := agent.State().Messages()
			if history[0].Role != RoleUser || history[0].Content != "prompt" {
				return false
			}
			last := history[len(history)-1]
			return len(history)-1 <= maxSteps && out == last.Content
		},
		gen.IntRange(0, 20),
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

func TestHistoryMonotonicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated runs only ever extend the transcript", prop.ForAll(
		func(runs []int, kinds []int) bool {
			agent := propertyAgent(scriptFor(kinds))
			var before []Message
			for _, maxSteps := range runs {
				if _, err := agent.Run(context.Background(), "again", maxSteps); err != nil {
					return false
				}
				after := agent.State().Messages()
				if len(after) <= len(before) {
					return false
				}
				for i := range before {
					if before[i] != after[i] {
						return false
					}
				}
				before = after
			}
			return agent.State().Metadata[MetaRuns] == len(runs) || len(runs) == 0
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
