package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	A int `json:"a" jsonschema_description:"first operand"`
	B int `json:"b" jsonschema_description:"second operand"`
}

type lookupInput struct {
	Path  string `json:"path" validate:"required"`
	Extra any    `json:"extra,omitempty"`
}

type point struct{ X, Y int }

func (p point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

type label struct{ text string }

func (l *label) String() string { return l.text }

type brokenJSON struct{}

func (brokenJSON) MarshalJSON() ([]byte, error) { panic("encoder failed") }

func TestRegisterFuncDerivesShape(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterFunc(r, "add", "Adds two numbers.", func(_ context.Context, in addInput) (int, error) {
		return in.A + in.B, nil
	}))

	tools := r.List()
	require.Len(t, tools, 1)
	assert.Equal(t, ParameterShape{"a": "integer", "b": "integer"}, tools[0].Parameters)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tools[0].Schema, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.ElementsMatch(t, []any{"a", "b"}, schema["required"])

	result, err := r.Call(context.Background(), "add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestRegisterFuncUntypedField(t *testing.T) {
	spec, err := NewTypedTool("lookup", "", func(_ context.Context, in lookupInput) (string, error) {
		return in.Path, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "string", spec.Parameters["path"])
	assert.Equal(t, NoTypeDeclared, spec.Parameters["extra"])
}

func TestTypedToolRejectsInvalidArguments(t *testing.T) {
	called := false
	spec, err := NewTypedTool("add", "", func(_ context.Context, in addInput) (int, error) {
		called = true
		return in.A + in.B, nil
	})
	require.NoError(t, err)

	cases := map[string]map[string]any{
		"missing field": {"a": 1},
		"wrong type":    {"a": "one", "b": 2},
		"unknown field": {"a": 1, "b": 2, "c": 3},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := spec.Capability(context.Background(), args)
			assert.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
	assert.False(t, called)
}

func TestTypedToolRunsStructValidation(t *testing.T) {
	spec, err := NewTypedTool("lookup", "", func(_ context.Context, in lookupInput) (string, error) {
		return in.Path, nil
	})
	require.NoError(t, err)

	_, err = spec.Capability(context.Background(), map[string]any{"path": ""})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	out, err := spec.Capability(context.Background(), map[string]any{"path": "/tmp", "extra": []any{1, "x"}})
	require.NoError(t, err)
	assert.Equal(t, "/tmp", out)
}

func TestSchemaForRejectsNonStruct(t *testing.T) {
	_, _, err := SchemaFor(addInput{})
	assert.ErrorIs(t, err, ErrInvalidToolSpec)

	n := 3
	_, _, err = SchemaFor(&n)
	assert.ErrorIs(t, err, ErrInvalidToolSpec)
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "", resultText(nil))
	assert.Equal(t, "plain", resultText("plain"))
	assert.Equal(t, "raw", resultText([]byte("raw")))
	assert.Equal(t, "(1,2)", resultText(point{1, 2}))
	assert.Equal(t, `["file1.txt","file2.txt"]`, resultText([]string{"file1.txt", "file2.txt"}))
	assert.Equal(t, "42", resultText(42))
}

func TestResultTextSurvivesPanickingMethods(t *testing.T) {
	var nilErr *CapabilityError
	assert.Equal(t, "<nil>", resultText((*label)(nil)))
	assert.Equal(t, "<nil>", resultText(nilErr))
	assert.Equal(t, "{}", resultText(brokenJSON{}))
}
