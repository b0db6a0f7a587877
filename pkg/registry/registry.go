// Package registry maps node kinds to their factories and validates node
// configuration against each factory's JSON schema.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dealflow/dealflow/pkg/protocol"
)

// Registry holds the node factories available to the engine.
type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

// RegisterNode adds a factory, keyed by its kind. Later registrations of
// the same kind win.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.Kind()] = factory
}

// CreateNode validates the config against the factory schema and creates a
// node instance.
func (r *Registry) CreateNode(ctx context.Context, kind, id string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.nodeFactories[kind]
	if !ok {
		return nil, fmt.Errorf("node kind '%s' not registered", kind)
	}

	if err := r.validateConfig(factory, config); err != nil {
		return nil, err
	}

	return factory.Create(ctx, id, config)
}

// AvailableKinds returns all registered node kinds.
func (r *Registry) AvailableKinds() []string {
	kinds := make([]string, 0, len(r.nodeFactories))
	for kind := range r.nodeFactories {
		kinds = append(kinds, kind)
	}

	return kinds
}

// Factory returns the factory for a kind, if registered.
func (r *Registry) Factory(kind string) (protocol.NodeFactory, bool) {
	factory, ok := r.nodeFactories[kind]

	return factory, ok
}

func (r *Registry) validateConfig(factory protocol.NodeFactory, config map[string]any) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for node kind '%s': %w", factory.Kind(), err)
	}

	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}

		return fmt.Errorf("invalid config for node kind '%s': %v", factory.Kind(), issues)
	}

	return nil
}
