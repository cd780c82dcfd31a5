package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
)

func newFakeProvider(t *testing.T, handler func(path string, body map[string]any) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handler(r.URL.Path, body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChatToolInvocation(t *testing.T) {
	var captured map[string]any
	srv := newFakeProvider(t, func(path string, body map[string]any) any {
		if path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", path)
		}
		captured = body
		return map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []any{map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []any{map[string]any{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "search_course_content",
							"arguments": `{"query":"lesson 1"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		}
	})

	chat := NewOpenAIChat(ChatConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "test-model"})
	reply, err := chat.Generate(context.Background(), GenerateRequest{
		System:   "be brief",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Tools: []ToolDefinition{{
			Name:        "search_course_content",
			Description: "search",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{"query": {Type: jsonschema.String}},
				Required:   []string{"query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	inv, ok := reply.(ToolInvocation)
	if !ok {
		t.Fatalf("reply = %#v, want ToolInvocation", reply)
	}
	if inv.ID != "call_1" || inv.Name != "search_course_content" || inv.Arguments != `{"query":"lesson 1"}` {
		t.Fatalf("unexpected invocation %+v", inv)
	}

	if captured["model"] != "test-model" || captured["tool_choice"] != "auto" {
		t.Fatalf("unexpected request %v", captured)
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", msgs)
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != "be brief" {
		t.Fatalf("system message = %v", msgs[0])
	}
	if tools, _ := captured["tools"].([]any); len(tools) != 1 {
		t.Fatalf("tools = %v", captured["tools"])
	}
}

func TestOpenAIChatDirectAnswerAndToolResult(t *testing.T) {
	var captured map[string]any
	srv := newFakeProvider(t, func(_ string, body map[string]any) any {
		captured = body
		return map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{"role": "assistant", "content": "final answer"},
			}},
		}
	})

	chat := NewOpenAIChat(ChatConfig{BaseURL: srv.URL + "/v1", Model: "m"})
	call := &ToolInvocation{ID: "call_9", Name: "search_course_content", Arguments: `{"query":"x"}`}
	reply, err := chat.Generate(context.Background(), GenerateRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "q"},
			{Role: RoleAssistant, ToolCall: call},
			{Role: RoleTool, Content: "result", ToolCallID: "call_9"},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if ans, ok := reply.(DirectAnswer); !ok || ans.Text != "final answer" {
		t.Fatalf("reply = %#v", reply)
	}
	if _, ok := captured["tools"]; ok {
		t.Fatalf("tools must not be sent: %v", captured["tools"])
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %v", msgs)
	}
	toolMsg, _ := msgs[2].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_9" {
		t.Fatalf("tool message = %v", toolMsg)
	}
	assistant, _ := msgs[1].(map[string]any)
	if calls, _ := assistant["tool_calls"].([]any); len(calls) != 1 {
		t.Fatalf("assistant tool_calls = %v", assistant["tool_calls"])
	}
}

func TestOpenAIChatProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	chat := NewOpenAIChat(ChatConfig{BaseURL: srv.URL + "/v1", Model: "m"})
	if _, err := chat.Generate(context.Background(), GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "q"}},
	}); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := newFakeProvider(t, func(path string, body map[string]any) any {
		if path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", path)
		}
		inputs, _ := body["input"].([]any)
		data := make([]any, 0, len(inputs))
		// Reverse order to check that results are placed by index.
		for i := len(inputs) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1},
			})
		}
		return map[string]any{"object": "list", "data": data, "model": "emb"}
	})

	emb := NewOpenAIEmbedder(EmbeddingConfig{BaseURL: srv.URL + "/v1", Model: "emb"})
	vecs, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Fatalf("vector %d = %v", i, v)
		}
	}
	if _, err := emb.Embed(context.Background(), []string{"ok", " "}); err == nil {
		t.Fatal("expected error for blank input")
	}
}
