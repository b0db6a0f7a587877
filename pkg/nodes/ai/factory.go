package ai

import (
	"context"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/providers"
)

// completionBaseSchema is shared by all three completion node kinds.
func completionBaseSchema(extra map[string]any, required []string) map[string]any {
	properties := map[string]any{
		"prompt": map[string]any{
			"type":        "string",
			"description": "User prompt template, interpolated against the variable context.",
		},
		"system_prompt": map[string]any{
			"type":        "string",
			"description": "System prompt template.",
		},
		"model": map[string]any{
			"type": "string",
		},
		"temperature": map[string]any{
			"type":    "number",
			"minimum": 0,
			"maximum": 2,
		},
		"max_tokens": map[string]any{
			"type":    "integer",
			"minimum": 1,
		},
		"retry_on_error": map[string]any{
			"type":        "boolean",
			"description": "Retry failed provider calls with a fixed 1s delay.",
		},
		"max_retries": map[string]any{
			"type":    "integer",
			"minimum": 0,
			"default": 3,
		},
		"simulation": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mockOutput": map[string]any{
					"type":        "object",
					"description": "Canned output used instead of a provider call in test mode.",
				},
			},
		},
	}

	for key, schema := range extra {
		properties[key] = schema
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// CompletionNodeFactory creates CompletionNode instances.
type CompletionNodeFactory struct {
	provider providers.CompletionProvider
}

// NewCompletionNodeFactory creates a factory backed by the given provider.
func NewCompletionNodeFactory(provider providers.CompletionProvider) protocol.NodeFactory {
	return &CompletionNodeFactory{provider: provider}
}

func (f *CompletionNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewCompletionNode(id, config, f.provider)
}

func (f *CompletionNodeFactory) Kind() string {
	return models.NodeKindAICompletion
}

func (f *CompletionNodeFactory) Name() string {
	return "AI Completion"
}

func (f *CompletionNodeFactory) Description() string {
	return "Calls the configured AI provider with interpolated prompts and emits the completion content."
}

func (f *CompletionNodeFactory) Schema() map[string]any {
	return completionBaseSchema(nil, []string{"prompt"})
}

// AssistantNodeFactory creates AssistantNode instances.
type AssistantNodeFactory struct {
	provider providers.CompletionProvider
}

// NewAssistantNodeFactory creates a factory backed by the given provider.
func NewAssistantNodeFactory(provider providers.CompletionProvider) protocol.NodeFactory {
	return &AssistantNodeFactory{provider: provider}
}

func (f *AssistantNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewAssistantNode(id, config, f.provider)
}

func (f *AssistantNodeFactory) Kind() string {
	return models.NodeKindCustomAssistant
}

func (f *AssistantNodeFactory) Name() string {
	return "Custom Assistant"
}

func (f *AssistantNodeFactory) Description() string {
	return "A completion with fixed assistant instructions, optionally extended with CRM protocol instructions."
}

func (f *AssistantNodeFactory) Schema() map[string]any {
	return completionBaseSchema(map[string]any{
		"instructions": map[string]any{
			"type":        "string",
			"description": "Assistant instructions used as the system prompt.",
		},
		"protocol_instructions": map[string]any{
			"type":        "string",
			"description": "Appended instructions describing how to invoke CRM operations.",
		},
	}, []string{"prompt", "instructions"})
}

// ManagerNodeFactory creates ManagerNode instances.
type ManagerNodeFactory struct {
	provider providers.CompletionProvider
}

// NewManagerNodeFactory creates a factory backed by the given provider.
func NewManagerNodeFactory(provider providers.CompletionProvider) protocol.NodeFactory {
	return &ManagerNodeFactory{provider: provider}
}

func (f *ManagerNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewManagerNode(id, config, f.provider)
}

func (f *ManagerNodeFactory) Kind() string {
	return models.NodeKindAssistantManager
}

func (f *ManagerNodeFactory) Name() string {
	return "Assistant Manager"
}

func (f *ManagerNodeFactory) Description() string {
	return "Routes the prompt to one of several named assistants selected from the context."
}

func (f *ManagerNodeFactory) Schema() map[string]any {
	return completionBaseSchema(map[string]any{
		"assistant": map[string]any{
			"type":        "string",
			"description": "Assistant name or ${...} reference selecting one.",
		},
		"assistants": map[string]any{
			"type":        "object",
			"description": "Named assistants: {instructions, model?}.",
			"additionalProperties": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"instructions": map[string]any{"type": "string"},
					"model":        map[string]any{"type": "string"},
				},
				"required": []string{"instructions"},
			},
		},
	}, []string{"prompt", "assistant", "assistants"})
}
