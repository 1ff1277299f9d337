// Package tools provides the tool registry and dispatch framework.
//
// The registry is a static, ordered catalog of callable tools built once
// at startup. Dispatch is a total function: every input path — malformed
// arguments, unknown names, handler failures — yields result text for
// the model to reason about, never an error crossing the boundary. Only
// the registry's wire payload and dispatch surface are visible to the
// conversation loop.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the tool's
	// arguments, serialized as-is into the tools payload.
	Parameters map[string]any
	Handler    func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the available tools in registration order.
type Registry struct {
	order  []string
	tools  map[string]*Tool
	hosted []map[string]any
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry. Registering a duplicate name
// panics: the catalog is assembled once at startup and a collision is a
// programming error, not a runtime condition.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration of %q", t.Name))
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// RegisterAll registers a batch of tools in order.
func (r *Registry) RegisterAll(ts []*Tool) {
	for _, t := range ts {
		r.Register(t)
	}
}

// RegisterHosted advertises an endpoint-hosted tool (e.g. web search).
// Hosted tools appear in the payload but are executed by the completion
// endpoint itself; they have no handler and are never dispatched.
func (r *Registry) RegisterHosted(kind string) {
	r.hosted = append(r.hosted, map[string]any{"type": kind})
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered function tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Payload returns the tool catalog in the completion endpoint's wire
// format: hosted tools first, then function tools in registration order.
func (r *Registry) Payload() []map[string]any {
	out := make([]map[string]any, 0, len(r.hosted)+len(r.order))
	out = append(out, r.hosted...)
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		})
	}
	return out
}

// Dispatch executes a tool by name with a raw JSON argument payload and
// returns the result text. It never fails the enclosing round: parse
// errors, unknown names, and handler errors all become text the model
// receives as the call's result.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) string {
	tool := r.tools[name]
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("Unknown function: %s", name)
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			r.logger.Warn("malformed tool arguments", "tool", name, "error", err)
			return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
		}
	}

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed",
			"tool", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return fmt.Sprintf("Error: %v", err)
	}

	r.logger.Debug("tool executed",
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
		"result_len", len(result),
	)
	return result
}

// StringArg extracts a required string argument, reporting the missing
// field by name so the model can correct its next call.
func StringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", name)
	}
	return s, nil
}

// OptionalStringArg extracts a string argument, returning "" when the
// field is absent or not a string.
func OptionalStringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}
