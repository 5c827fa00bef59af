package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"
)

// NoTypeDeclared is the type tag recorded for a parameter without a declared type.
const NoTypeDeclared = "no type declared"

// Capability is the executable part of a tool.
type Capability func(ctx context.Context, args map[string]any) (any, error)

// ParameterShape maps parameter names to type tags.
type ParameterShape map[string]string

// ToolSpec is a registry entry. Name is the primary key.
type ToolSpec struct {
	Name        string          `validate:"required"`
	Description string          `validate:"-"`
	Parameters  ParameterShape  `validate:"dive,keys,required,endkeys"`
	Schema      json.RawMessage `validate:"-"`
	Capability  Capability      `validate:"required"`
}

// ToolDescriptor is the introspection view of a registered tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterShape  `json:"parameters"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

func (t ToolSpec) descriptor() ToolDescriptor {
	params := make(ParameterShape, len(t.Parameters))
	for k, v := range t.Parameters {
		if v == "" {
			v = NoTypeDeclared
		}
		params[k] = v
	}
	return ToolDescriptor{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  params,
		Schema:      t.Schema,
	}
}

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// SchemaFor reflects the JSON schema and parameter shape of the struct pointed to by v.
func SchemaFor(v any) (json.RawMessage, ParameterShape, error) {
	if reflect.ValueOf(v).Kind() != reflect.Ptr {
		return nil, nil, fmt.Errorf("%w: input must be a pointer", ErrInvalidToolSpec)
	}
	if k := reflect.Indirect(reflect.ValueOf(v)).Kind(); k != reflect.Struct {
		return nil, nil, fmt.Errorf("%w: input must be a struct, got %s", ErrInvalidToolSpec, k)
	}

	schema := reflector.Reflect(v)
	shape := make(ParameterShape)
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			tag := NoTypeDeclared
			if pair.Value != nil && pair.Value.Type != "" {
				tag = pair.Value.Type
			}
			shape[pair.Key] = tag
		}
	}
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, nil, err
	}
	return b, shape, nil
}

// NewTypedTool builds a ToolSpec from a typed handler. The parameter shape and
// schema are taken from the In struct; arguments are validated against the
// schema and the struct's validate tags before fn is called.
func NewTypedTool[In, Out any](name, description string, fn func(ctx context.Context, input In) (Out, error)) (ToolSpec, error) {
	if fn == nil {
		return ToolSpec{}, fmt.Errorf("%w: %q has nil handler", ErrInvalidToolSpec, name)
	}
	raw, shape, err := SchemaFor(new(In))
	if err != nil {
		return ToolSpec{}, fmt.Errorf("tool %q: %w", name, err)
	}
	compiled, err := compileSchema(name, raw)
	if err != nil {
		return ToolSpec{}, err
	}

	capability := func(ctx context.Context, args map[string]any) (any, error) {
		input, err := decodeArgs[In](compiled, args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, input)
	}

	return ToolSpec{
		Name:        name,
		Description: description,
		Parameters:  shape,
		Schema:      raw,
		Capability:  capability,
	}, nil
}

// RegisterFunc registers a typed handler on r. See NewTypedTool.
func RegisterFunc[In, Out any](r *Registry, name, description string, fn func(ctx context.Context, input In) (Out, error)) error {
	spec, err := NewTypedTool(name, description, fn)
	if err != nil {
		return err
	}
	return r.Register(spec)
}

func compileSchema(name string, raw json.RawMessage) (*schemavalidator.Schema, error) {
	doc, err := schemavalidator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("tool %q: unmarshal schema: %w", name, err)
	}
	c := schemavalidator.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("tool %q: add schema resource: %w", name, err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("tool %q: compile schema: %w", name, err)
	}
	return compiled, nil
}

// checkArgs validates args against compiled and returns their JSON encoding.
func checkArgs(compiled *schemavalidator.Schema, args map[string]any) ([]byte, error) {
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	inst, err := schemavalidator.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := compiled.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return b, nil
}

func decodeArgs[In any](compiled *schemavalidator.Schema, args map[string]any) (In, error) {
	var input In
	b, err := checkArgs(compiled, args)
	if err != nil {
		return input, err
	}
	if err := json.Unmarshal(b, &input); err != nil {
		return input, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := validate.Struct(&input); err != nil {
		return input, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return input, nil
}

// resultText renders a capability result for the transcript. A result whose
// String, Error or MarshalJSON method panics is rendered with %v instead.
func resultText(result any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("%v", result)
		}
	}()
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}
