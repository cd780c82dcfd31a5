package ai

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn sent to the language model. Assistant turns that
// requested a tool carry ToolCall; the matching tool result carries
// ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCall   *ToolInvocation
	ToolCallID string
}

// ToolDefinition describes a capability the model may invoke.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

type GenerateRequest struct {
	System   string
	Messages []Message
	// Tools offered to the model. A request without tools always yields a
	// DirectAnswer.
	Tools []ToolDefinition
}

// Reply is the model's answer to one GenerateRequest: either a DirectAnswer
// or a ToolInvocation.
type Reply interface {
	reply()
}

type DirectAnswer struct {
	Text string
}

type ToolInvocation struct {
	ID        string
	Name      string
	Arguments string
	// Text is any content the model produced alongside the tool request.
	Text string
}

func (DirectAnswer) reply()   {}
func (ToolInvocation) reply() {}

// ChatModel is a language-model provider.
type ChatModel interface {
	Generate(ctx context.Context, req GenerateRequest) (Reply, error)
}

// Embedder maps texts to vectors. The same text always maps to the same
// vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
