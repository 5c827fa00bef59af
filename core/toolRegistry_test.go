package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSpec() ToolSpec {
	return ToolSpec{
		Name:        "add",
		Description: "Adds two numbers.",
		Parameters:  ParameterShape{"a": "integer", "b": "integer"},
		Capability: func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(int) + args["b"].(int), nil
		},
	}
}

func TestRegistryRegisterAndCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(addSpec()))

	tools := r.List()
	require.Len(t, tools, 1)
	assert.Equal(t, "add", tools[0].Name)
	assert.Equal(t, "Adds two numbers.", tools[0].Description)
	assert.Equal(t, ParameterShape{"a": "integer", "b": "integer"}, tools[0].Parameters)

	result, err := r.Call(context.Background(), "add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestRegistryCallUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call(context.Background(), "nonexistent", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)

	var notFound *ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nonexistent", notFound.Name)
	assert.Contains(t, err.Error(), `"nonexistent"`)
}

func TestRegistryCallPropagatesCapabilityError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	require.NoError(t, r.Register(ToolSpec{
		Name: "explode",
		Capability: func(context.Context, map[string]any) (any, error) {
			return nil, boom
		},
	}))

	_, err := r.Call(context.Background(), "explode", nil)
	assert.Same(t, boom, err)
	assert.NotErrorIs(t, err, ErrToolNotFound)
}

func TestRegistryOverwriteKeepsPosition(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, map[string]any) (any, error) { return "first", nil }
	require.NoError(t, r.Register(ToolSpec{Name: "a", Capability: noop}))
	require.NoError(t, r.Register(ToolSpec{Name: "b", Capability: noop}))
	require.NoError(t, r.Register(ToolSpec{
		Name:        "a",
		Description: "replaced",
		Capability:  func(context.Context, map[string]any) (any, error) { return "second", nil },
	}))

	tools := r.List()
	require.Len(t, tools, 2)
	assert.Equal(t, "a", tools[0].Name)
	assert.Equal(t, "replaced", tools[0].Description)
	assert.Equal(t, "b", tools[1].Name)

	result, err := r.Call(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", result)
}

func TestRegistryRejectsInvalidSpecs(t *testing.T) {
	noop := func(context.Context, map[string]any) (any, error) { return nil, nil }
	cases := map[string]ToolSpec{
		"empty name":     {Capability: noop},
		"nil capability": {Name: "x"},
		"empty param":    {Name: "x", Capability: noop, Parameters: ParameterShape{"": "string"}},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(spec)
			assert.ErrorIs(t, err, ErrInvalidToolSpec)
			assert.Empty(t, r.List())
		})
	}
}

func TestRegistryListMarksUntypedParameters(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ToolSpec{
		Name:       "echo",
		Parameters: ParameterShape{"value": ""},
		Capability: func(_ context.Context, args map[string]any) (any, error) { return args["value"], nil },
	}))

	assert.Equal(t, NoTypeDeclared, r.List()[0].Parameters["value"])
	assert.True(t, r.Has("echo"))
	assert.False(t, r.Has("missing"))
}
