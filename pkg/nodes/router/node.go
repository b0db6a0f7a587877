// Package router provides the static route-table node. It selects one
// named route from a lookup value and emits on the port named after the
// selected route; the walker only follows matching connections.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealflow/dealflow/pkg/models"
	"github.com/dealflow/dealflow/pkg/protocol"
)

// RouterNode has no side effects beyond returning the selected route.
type RouterNode struct {
	id           string
	lookup       string
	routes       map[string]string
	defaultRoute string
}

// NewRouterNode creates a router node. lookup is a ${...} reference (deal
// stage, priority, owner) matched against the routes table.
func NewRouterNode(id string, config map[string]any) (*RouterNode, error) {
	lookup, ok := config["lookup"].(string)
	if !ok || lookup == "" {
		return nil, errors.New("missing required field 'lookup'")
	}

	routesAny, ok := config["routes"].(map[string]any)
	if !ok || len(routesAny) == 0 {
		return nil, errors.New("missing required field 'routes'")
	}

	routes := make(map[string]string, len(routesAny))

	for value, route := range routesAny {
		routeName, ok := route.(string)
		if !ok || routeName == "" {
			return nil, fmt.Errorf("route for value %q must be a non-empty string", value)
		}

		routes[value] = routeName
	}

	defaultRoute, _ := config["default_route"].(string)

	return &RouterNode{
		id:           id,
		lookup:       lookup,
		routes:       routes,
		defaultRoute: defaultRoute,
	}, nil
}

func (n *RouterNode) ID() string {
	return n.id
}

func (n *RouterNode) Kind() string {
	return models.NodeKindRouter
}

// Execute resolves the lookup value and emits {selectedRoute} on the port
// named after the route. An unmatched value falls back to default_route;
// with no default the node emits on the "default" port so unrouted graphs
// still make progress.
func (n *RouterNode) Execute(_ context.Context, ec protocol.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	value := fmt.Sprintf("%v", ec.Resolver.ResolveTemplate(n.lookup))

	route, matched := n.routes[value]
	if !matched {
		route = n.defaultRoute
		if route == "" {
			route = models.PortDefault
		}
	}

	return map[string]models.NodeResult{
		route: {
			NodeID: n.id,
			Data: map[string]any{
				"selectedRoute": route,
				"lookup_value":  value,
				"matched":       matched,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}
