package tool

import (
	"context"
	"errors"
	"fmt"

	"course-rag/internal/ai"
	"course-rag/internal/model"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Result is the text handed back to the model plus the provenance of the
// evidence it contains.
type Result struct {
	Text    string
	Sources []model.Source
}

// Tool is a capability the language model may invoke.
type Tool interface {
	Definition() ai.ToolDefinition
	Execute(ctx context.Context, arguments string) (Result, error)
}

// Manager keeps the registered tools in registration order.
type Manager struct {
	tools map[string]Tool
	order []string
}

func NewManager(tools ...Tool) (*Manager, error) {
	m := &Manager{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := m.Register(t); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return errors.New("tool name is empty")
	}
	if _, ok := m.tools[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	m.tools[name] = t
	m.order = append(m.order, name)
	return nil
}

func (m *Manager) Definitions() []ai.ToolDefinition {
	defs := make([]ai.ToolDefinition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

func (m *Manager) Execute(ctx context.Context, name, arguments string) (Result, error) {
	t, ok := m.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Execute(ctx, arguments)
}
