// Package tools defines the fixed mailbox tool vocabulary the model may call
// and the executor that translates emitted calls into mailbox mutations.
package tools

// ParameterSpec defines one tool parameter.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, number, boolean
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolDefinition is one entry of the vocabulary, in the shape the LLM layer
// converts to the provider's function-calling format.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterSpec `json:"parameters"`
}

// ToolCall is one call emitted by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// EmailContext identifies the email a tool call operates on.
type EmailContext struct {
	ID      string
	From    string
	Subject string
}

// stringArg narrowly re-types an argument the AI layer's schema validated.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
