package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pretzelai/email-use/core/agent/tools"
	"github.com/pretzelai/email-use/core/domain"
)

func newToolCallServer(t *testing.T, toolCallsJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {"role": "assistant", "content": "", "tool_calls": [%s]}
			}]
		}`, toolCallsJSON)
	}))
}

func TestCompleteWithToolsEmissionOrder(t *testing.T) {
	srv := newToolCallServer(t, `
		{"id": "call_1", "type": "function", "function": {"name": "addLabel", "arguments": "{\"labelName\": \"News\"}"}},
		{"id": "call_2", "type": "function", "function": {"name": "archiveEmail", "arguments": "{}"}}`)
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	_, calls, err := c.CompleteWithTools(context.Background(), "gpt-4o", "sys", "user", nil)
	if err != nil {
		t.Fatalf("CompleteWithTools() error = %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(calls))
	}
	if calls[0].Name != "addLabel" || calls[1].Name != "archiveEmail" {
		t.Errorf("order = [%s, %s], want [addLabel, archiveEmail]", calls[0].Name, calls[1].Name)
	}
	if calls[0].Args["labelName"] != "News" {
		t.Errorf("args = %v", calls[0].Args)
	}
}

func TestCompleteWithToolsMalformedArguments(t *testing.T) {
	// One undecodable call rejects the whole response; no partial list.
	srv := newToolCallServer(t, `
		{"id": "call_1", "type": "function", "function": {"name": "sendEmail", "arguments": "{not valid json"}},
		{"id": "call_2", "type": "function", "function": {"name": "archiveEmail", "arguments": "{}"}}`)
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	_, calls, err := c.CompleteWithTools(context.Background(), "gpt-4o", "sys", "user", nil)
	if err == nil {
		t.Fatal("expected an error for malformed tool arguments")
	}
	if !errors.Is(err, domain.ErrAIInvocation) {
		t.Errorf("error = %v, want domain.ErrAIInvocation", err)
	}
	if calls != nil {
		t.Errorf("tool calls = %v, want none", calls)
	}
}

func TestToJSONSchema(t *testing.T) {
	params := []tools.ParameterSpec{
		{Name: "to", Type: "string", Description: "recipient", Required: true},
		{Name: "isReply", Type: "boolean", Description: "thread as reply"},
	}
	schema := toJSONSchema(params)

	if schema["type"] != "object" {
		t.Errorf("schema type = %v", schema["type"])
	}
	props := schema["properties"].(map[string]any)
	if _, ok := props["to"]; !ok {
		t.Error("missing property to")
	}
	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "to" {
		t.Errorf("required = %v, want [to]", required)
	}
}

func TestToJSONSchemaEmptyParams(t *testing.T) {
	// Tools like archiveEmail take no arguments; the schema must still be a
	// valid empty object with a non-nil required list.
	schema := toJSONSchema(nil)
	if schema["type"] != "object" {
		t.Errorf("schema type = %v", schema["type"])
	}
	if required := schema["required"].([]string); len(required) != 0 {
		t.Errorf("required = %v, want empty", required)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(RegistryConfig{OpenAIAPIKey: "sk-test"})

	if _, err := r.Resolve(domain.ProviderOpenAI); err != nil {
		t.Errorf("openai should resolve: %v", err)
	}
	if _, err := r.Resolve(domain.ProviderAnthropic); err == nil {
		t.Error("anthropic without a key should not resolve")
	}
}
