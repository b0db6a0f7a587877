package cmd

import (
	"log/slog"

	"github.com/dealflow/dealflow/pkg/nodes/action"
	"github.com/dealflow/dealflow/pkg/nodes/ai"
	"github.com/dealflow/dealflow/pkg/nodes/condition"
	"github.com/dealflow/dealflow/pkg/nodes/form"
	"github.com/dealflow/dealflow/pkg/nodes/join"
	"github.com/dealflow/dealflow/pkg/nodes/router"
	"github.com/dealflow/dealflow/pkg/nodes/splitter"
	"github.com/dealflow/dealflow/pkg/nodes/trigger"
	"github.com/dealflow/dealflow/pkg/providers"
	"github.com/dealflow/dealflow/pkg/registry"
)

// Dependencies carries the external collaborators node factories need.
type Dependencies struct {
	Completion providers.CompletionProvider
	Records    providers.RecordStore
	Dispatcher providers.Dispatcher
	Identity   providers.Identity
}

func (d *Dependencies) fillDefaults() {
	if d.Completion == nil {
		d.Completion = providers.NewSimulationProvider("")
	}

	if d.Records == nil {
		d.Records = providers.NewMemoryRecordStore()
	}

	if d.Dispatcher == nil {
		d.Dispatcher = providers.NewMemoryDispatcher()
	}

	if d.Identity == nil {
		d.Identity = providers.StaticIdentity{UserID: "system"}
	}
}

// NewRegistry builds a registry with every built-in node kind registered.
func NewRegistry(logger *slog.Logger, deps Dependencies) *registry.Registry {
	deps.fillDefaults()

	reg := registry.NewRegistry(logger)

	reg.RegisterNode(trigger.NewTriggerNodeFactory())
	reg.RegisterNode(form.NewFormNodeFactory())
	reg.RegisterNode(condition.NewConditionNodeFactory())
	reg.RegisterNode(router.NewRouterNodeFactory())
	reg.RegisterNode(splitter.NewSplitterNodeFactory())
	reg.RegisterNode(join.NewJoinNodeFactory())
	reg.RegisterNode(ai.NewCompletionNodeFactory(deps.Completion))
	reg.RegisterNode(ai.NewAssistantNodeFactory(deps.Completion))
	reg.RegisterNode(ai.NewManagerNodeFactory(deps.Completion))
	reg.RegisterNode(action.NewActionNodeFactory(action.Collaborators{
		Records:    deps.Records,
		Dispatcher: deps.Dispatcher,
		Identity:   deps.Identity,
	}))

	return reg
}
