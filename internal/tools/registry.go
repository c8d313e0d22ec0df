// Package tools exposes catalog operations over a small tool-call
// protocol: a discoverable tool list, JSON Schema argument validation
// and one dispatch endpoint.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// HandlerFunc runs one tool call. Arguments have already passed the
// tool's input schema.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is one callable operation. Mutating tools additionally pass the
// write guard before dispatch.
type Tool struct {
	Name        string
	Description string
	InputSchema string
	Mutating    bool
	Handler     HandlerFunc
}

// Descriptor is the discovery form of a tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// UnknownToolError names a tool the registry does not carry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ArgumentError carries the schema violations of a tool call.
type ArgumentError struct {
	Tool       string
	Violations []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Violations, "; "))
}

type registered struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry holds the tool set in registration order.
type Registry struct {
	byName map[string]*registered
	order  []string
}

// NewRegistry compiles every input schema up front, so a broken schema
// fails at startup instead of on the first call.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]*registered, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			return nil, fmt.Errorf("tools: every tool needs a name and a handler")
		}
		if _, exists := r.byName[t.Name]; exists {
			return nil, fmt.Errorf("tools: duplicate tool %s", t.Name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(t.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("tools: compile schema for %s: %w", t.Name, err)
		}
		r.byName[t.Name] = &registered{tool: t, schema: schema}
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name].tool
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: json.RawMessage(t.InputSchema),
		})
	}
	return out
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	reg, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return reg.tool, true
}

// Call validates the arguments against the tool's schema and runs its
// handler.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	reg, ok := r.byName[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := reg.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, fmt.Errorf("tools: validate %s arguments: %w", name, err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return nil, &ArgumentError{Tool: name, Violations: violations}
	}
	return reg.tool.Handler(ctx, args)
}
