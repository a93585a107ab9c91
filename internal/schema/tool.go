package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all LLM-callable tools must satisfy.
//
// Execute degrades to text instead of failing: transport errors, bad
// credentials and empty result sets all come back as a descriptive string
// with a nil error, so a broken tool never aborts the model turn.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ToolDefinition is the wire-level declaration of a tool sent with a
// chat request.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// DefinitionOf builds the wire declaration for a tool.
func DefinitionOf(t Tool) ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}
