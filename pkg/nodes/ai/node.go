// Package ai implements the completion-backed node kinds: plain
// ai-completion, custom-assistant (fixed instructions) and
// assistant-manager (routes a task to one of several named assistants).
// All three share the same prompt-interpolation and retry behavior.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
	"github.com/dealflow/dealflow/pkg/providers"
)

// completionConfig is the configuration shared by every completion node.
type completionConfig struct {
	SystemPrompt string
	Prompt       string
	Model        string
	Temperature  float64
	MaxTokens    int
	RetryOnError bool
	MaxRetries   int
	MockOutput   map[string]any
}

func parseCompletionConfig(config map[string]any) (completionConfig, error) {
	cfg := completionConfig{MaxRetries: 3}

	prompt, ok := config["prompt"].(string)
	if !ok || prompt == "" {
		return cfg, errors.New("missing required field 'prompt'")
	}

	cfg.Prompt = prompt
	cfg.SystemPrompt, _ = config["system_prompt"].(string)
	cfg.Model, _ = config["model"].(string)
	cfg.Temperature = floatValue(config, "temperature")
	cfg.MaxTokens = intValue(config, "max_tokens")
	cfg.RetryOnError, _ = config["retry_on_error"].(bool)

	if raw, exists := config["max_retries"]; exists {
		cfg.MaxRetries = intFrom(raw, cfg.MaxRetries)
	}

	if sim, ok := config["simulation"].(map[string]any); ok {
		cfg.MockOutput, _ = sim["mockOutput"].(map[string]any)
	}

	return cfg, nil
}

// floatValue reads a numeric config value. JSON decoding yields float64;
// plain ints appear when configs are built in code.
func floatValue(config map[string]any, key string) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func intValue(config map[string]any, key string) int {
	return intFrom(config[key], 0)
}

func intFrom(raw any, fallback int) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// completionCore holds what every completion node needs to make one call.
type completionCore struct {
	id       string
	cfg      completionConfig
	provider providers.CompletionProvider
}

// complete interpolates the prompts, calls the provider and shapes the
// result for the main output port. Test-mode runs short-circuit to the
// configured mock output, or a simulation provider when none is set.
// Provider failures surface as handler errors so the per-node failure
// policy applies; a result is never emitted alongside an error.
func (c *completionCore) complete(ctx context.Context, ec protocol.ExecutionContext, systemPrompt, userPrompt string, extra map[string]any) (map[string]models.NodeResult, error) {
	if ec.TestMode && c.cfg.MockOutput != nil {
		return c.mainResult(c.cfg.MockOutput, extra), nil
	}

	provider := c.provider
	if ec.TestMode {
		provider = providers.NewSimulationProvider("")
	}

	if c.cfg.RetryOnError {
		provider = providers.WithRetry(provider, providers.RetryConfig{MaxRetries: c.cfg.MaxRetries})
	}

	systemPrompt = ec.Resolver.Interpolate(systemPrompt)
	userPrompt = ec.Resolver.Interpolate(userPrompt)

	result, err := provider.Complete(ctx, systemPrompt, userPrompt, providers.CompletionOptions{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, providers.NewProviderError("completion", errors.New("provider returned no result"))
	}

	if result.Error != "" {
		return nil, providers.NewProviderError("completion", errors.New(result.Error))
	}

	data := map[string]any{"content": result.Content}
	if result.Usage != nil {
		data["usage"] = map[string]any{
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
			"total_tokens":      result.Usage.TotalTokens,
		}
	}

	return c.mainResult(data, extra), nil
}

func (c *completionCore) mainResult(data, extra map[string]any) map[string]models.NodeResult {
	out := make(map[string]any, len(data)+len(extra))
	for k, v := range data {
		out[k] = v
	}

	for k, v := range extra {
		out[k] = v
	}

	return map[string]models.NodeResult{
		models.PortMain: {
			NodeID:    c.id,
			Data:      out,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}
}

// CompletionNode is the plain ai-completion node: one prompt pair, one call.
type CompletionNode struct {
	core completionCore
}

// NewCompletionNode creates an ai-completion node backed by the given provider.
func NewCompletionNode(id string, config map[string]any, provider providers.CompletionProvider) (*CompletionNode, error) {
	cfg, err := parseCompletionConfig(config)
	if err != nil {
		return nil, err
	}

	return &CompletionNode{core: completionCore{id: id, cfg: cfg, provider: provider}}, nil
}

func (n *CompletionNode) ID() string {
	return n.core.id
}

func (n *CompletionNode) Kind() string {
	return models.NodeKindAICompletion
}

func (n *CompletionNode) Execute(ctx context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	return n.core.complete(ctx, ec, n.core.cfg.SystemPrompt, n.core.cfg.Prompt, nil)
}

// AssistantNode is the custom-assistant node: a completion with fixed
// instructions acting as the system prompt, optionally followed by
// protocol instructions telling the model how to invoke CRM operations.
type AssistantNode struct {
	core                 completionCore
	instructions         string
	protocolInstructions string
}

// NewAssistantNode creates a custom-assistant node.
func NewAssistantNode(id string, config map[string]any, provider providers.CompletionProvider) (*AssistantNode, error) {
	cfg, err := parseCompletionConfig(config)
	if err != nil {
		return nil, err
	}

	instructions, ok := config["instructions"].(string)
	if !ok || instructions == "" {
		return nil, errors.New("missing required field 'instructions'")
	}

	protocolInstructions, _ := config["protocol_instructions"].(string)

	return &AssistantNode{
		core:                 completionCore{id: id, cfg: cfg, provider: provider},
		instructions:         instructions,
		protocolInstructions: protocolInstructions,
	}, nil
}

func (n *AssistantNode) ID() string {
	return n.core.id
}

func (n *AssistantNode) Kind() string {
	return models.NodeKindCustomAssistant
}

func (n *AssistantNode) Execute(ctx context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	systemPrompt := n.instructions
	if n.protocolInstructions != "" {
		systemPrompt = systemPrompt + "\n\n" + n.protocolInstructions
	}

	return n.core.complete(ctx, ec, systemPrompt, n.core.cfg.Prompt, nil)
}

// assistantSpec is one named assistant the manager can route to.
type assistantSpec struct {
	Instructions string
	Model        string
}

// ManagerNode is the assistant-manager node: it resolves a selector
// against the context and dispatches the prompt to the matching assistant.
type ManagerNode struct {
	core       completionCore
	selector   string
	assistants map[string]assistantSpec
}

// NewManagerNode creates an assistant-manager node. The assistants table
// maps assistant names to {instructions, model?}; selector is a ${...}
// reference (or literal name) choosing which one handles this run.
func NewManagerNode(id string, config map[string]any, provider providers.CompletionProvider) (*ManagerNode, error) {
	cfg, err := parseCompletionConfig(config)
	if err != nil {
		return nil, err
	}

	selector, ok := config["assistant"].(string)
	if !ok || selector == "" {
		return nil, errors.New("missing required field 'assistant'")
	}

	rawAssistants, ok := config["assistants"].(map[string]any)
	if !ok || len(rawAssistants) == 0 {
		return nil, errors.New("missing required field 'assistants'")
	}

	assistants := make(map[string]assistantSpec, len(rawAssistants))

	for name, raw := range rawAssistants {
		spec, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("assistant %q must be an object", name)
		}

		instructions, ok := spec["instructions"].(string)
		if !ok || instructions == "" {
			return nil, fmt.Errorf("assistant %q is missing 'instructions'", name)
		}

		model, _ := spec["model"].(string)
		assistants[name] = assistantSpec{Instructions: instructions, Model: model}
	}

	return &ManagerNode{
		core:       completionCore{id: id, cfg: cfg, provider: provider},
		selector:   selector,
		assistants: assistants,
	}, nil
}

func (n *ManagerNode) ID() string {
	return n.core.id
}

func (n *ManagerNode) Kind() string {
	return models.NodeKindAssistantManager
}

func (n *ManagerNode) Execute(ctx context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	name := fmt.Sprintf("%v", ec.Resolver.ResolveTemplate(n.selector))

	assistant, ok := n.assistants[name]
	if !ok {
		return nil, fmt.Errorf("unknown assistant %q", name)
	}

	core := n.core
	if assistant.Model != "" {
		core.cfg.Model = assistant.Model
	}

	return core.complete(ctx, ec, assistant.Instructions, core.cfg.Prompt, map[string]any{"assistant": name})
}
