// Package provision models infrastructure as a declarative resource graph:
// each resource names the resources it depends on, and the graph applies
// them in topological order rather than imperative sequencing.
package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-platform/stackd/internal/domain"
)

// Kind classifies a provisioned resource.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindSubnet         Kind = "subnet"
	KindRouter         Kind = "router"
	KindNAT            Kind = "nat"
	KindFirewallEgress Kind = "firewall-egress"
	KindConnector      Kind = "connector"
	KindRepository     Kind = "repository"
	KindServiceAccount Kind = "service-account"
	KindRoleBinding    Kind = "role-binding"
	KindInvokerBinding Kind = "invoker-binding"
)

// Resource is one node in the graph. Spec is the kind-specific payload the
// provider translates into platform API calls.
type Resource struct {
	ID        string
	Kind      Kind
	DependsOn []string
	Spec      any
}

// Provider applies and destroys individual resources on the target platform.
// Implementations map platform failures onto the domain provisioning error
// classes (quota, permission, name conflict).
type Provider interface {
	Apply(ctx context.Context, res Resource) error
	Destroy(ctx context.Context, res Resource) error
}

// Graph is an ordered set of resources with dependency edges.
type Graph struct {
	resources []Resource
	byID      map[string]int
}

func NewGraph() *Graph {
	return &Graph{byID: make(map[string]int)}
}

// Add appends resources to the graph. Duplicate IDs are rejected.
func (g *Graph) Add(resources ...Resource) error {
	for _, res := range resources {
		if res.ID == "" {
			return fmt.Errorf("%w: resource id is required", domain.ErrInvalidInput)
		}
		if _, exists := g.byID[res.ID]; exists {
			return fmt.Errorf("%w: duplicate resource id %q", domain.ErrInvalidInput, res.ID)
		}
		g.byID[res.ID] = len(g.resources)
		g.resources = append(g.resources, res)
	}
	return nil
}

// Resources returns the graph's resources in insertion order.
func (g *Graph) Resources() []Resource {
	return g.resources
}

// Order resolves the topological apply order. Insertion order breaks ties so
// the result is deterministic.
func (g *Graph) Order() ([]Resource, error) {
	indegree := make(map[string]int, len(g.resources))
	dependents := make(map[string][]string, len(g.resources))

	for _, res := range g.resources {
		if _, ok := indegree[res.ID]; !ok {
			indegree[res.ID] = 0
		}
		for _, dep := range res.DependsOn {
			if _, known := g.byID[dep]; !known {
				return nil, fmt.Errorf("%w: resource %q depends on unknown %q", domain.ErrInvalidInput, res.ID, dep)
			}
			indegree[res.ID]++
			dependents[dep] = append(dependents[dep], res.ID)
		}
	}

	var queue []string
	for _, res := range g.resources {
		if indegree[res.ID] == 0 {
			queue = append(queue, res.ID)
		}
	}

	ordered := make([]Resource, 0, len(g.resources))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, g.resources[g.byID[id]])
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(ordered) != len(g.resources) {
		return nil, fmt.Errorf("%w: dependency cycle in resource graph", domain.ErrInvalidInput)
	}
	return ordered, nil
}

// Apply provisions every resource in dependency order. The first failure
// aborts the apply; nothing downstream of a failed resource is attempted.
func (g *Graph) Apply(ctx context.Context, provider Provider) error {
	ordered, err := g.Order()
	if err != nil {
		return err
	}
	for _, res := range ordered {
		if err := provider.Apply(ctx, res); err != nil {
			return fmt.Errorf("apply %s %q: %w", res.Kind, res.ID, err)
		}
		slog.Info("resource applied", "kind", res.Kind, "id", res.ID)
	}
	return nil
}

// Destroy tears resources down in reverse dependency order. NotFound from the
// provider is tolerated so teardown is idempotent.
func (g *Graph) Destroy(ctx context.Context, provider Provider) error {
	ordered, err := g.Order()
	if err != nil {
		return err
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		res := ordered[i]
		if err := provider.Destroy(ctx, res); err != nil {
			return fmt.Errorf("destroy %s %q: %w", res.Kind, res.ID, err)
		}
		slog.Info("resource destroyed", "kind", res.Kind, "id", res.ID)
	}
	return nil
}
