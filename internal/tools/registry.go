// Package tools holds the function tools exposed to the answer model and
// the registry that dispatches calls to them by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"ragbot/internal/llm"
)

// Tool is one callable function offered to the model.
type Tool interface {
	Name() string
	Schema() llm.Tool
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is a closed name-to-tool map. Calls to names outside it fail;
// nothing is ever dispatched dynamically.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name()]; dup {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Schemas returns the tool schemas in registration order.
func (r *Registry) Schemas() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// Invoke dispatches one call by name.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Invoke(ctx, args)
}
