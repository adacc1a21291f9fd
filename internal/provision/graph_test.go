package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-platform/stackd/internal/domain"
)

// fakeProvider records apply/destroy order and can fail on a chosen resource.
type fakeProvider struct {
	applied   []string
	destroyed []string
	failOn    string
	failWith  error
}

func (p *fakeProvider) Apply(_ context.Context, res Resource) error {
	if res.ID == p.failOn {
		return p.failWith
	}
	p.applied = append(p.applied, res.ID)
	return nil
}

func (p *fakeProvider) Destroy(_ context.Context, res Resource) error {
	p.destroyed = append(p.destroyed, res.ID)
	return nil
}

func testFabric() *domain.NetworkFabric {
	return &domain.NetworkFabric{
		Name:       "deepstack-net",
		Region:     "us-central1",
		SubnetCIDR: "10.8.0.0/28",
		RouterName: "deepstack-router",
		NATName:    "deepstack-nat",
	}
}

func TestApplyTopologicalOrder(t *testing.T) {
	g := NewGraph()
	if err := g.Add(FabricResources(testFabric())...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider := &fakeProvider{}
	if err := g.Apply(context.Background(), provider); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(provider.applied))
	for i, id := range provider.applied {
		pos[id] = i
	}

	before := func(a, b string) {
		t.Helper()
		if pos[a] >= pos[b] {
			t.Errorf("%q applied at %d, after %q at %d", a, pos[a], b, pos[b])
		}
	}
	before("deepstack-net", "deepstack-net-subnet")
	before("deepstack-net", "deepstack-router")
	before("deepstack-router", "deepstack-nat")
	before("deepstack-net-subnet", "deepstack-nat")
	before("deepstack-net", "deepstack-net-egress")
}

func TestDestroyReverseOrder(t *testing.T) {
	g := NewGraph()
	if err := g.Add(FabricResources(testFabric())...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider := &fakeProvider{}
	if err := g.Apply(context.Background(), provider); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Destroy(context.Background(), provider); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(provider.destroyed) != len(provider.applied) {
		t.Fatalf("destroyed %d resources, applied %d", len(provider.destroyed), len(provider.applied))
	}
	for i, id := range provider.applied {
		mirror := provider.destroyed[len(provider.destroyed)-1-i]
		if id != mirror {
			t.Errorf("destroy order not reversed: applied[%d]=%q, destroyed mirror=%q", i, id, mirror)
		}
	}
}

func TestApplyAbortsOnFailure(t *testing.T) {
	g := NewGraph()
	if err := g.Add(FabricResources(testFabric())...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider := &fakeProvider{failOn: "deepstack-router", failWith: domain.ErrQuotaExceeded}
	err := g.Apply(context.Background(), provider)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	// NAT depends on the failed router and must not have been attempted.
	for _, id := range provider.applied {
		if id == "deepstack-nat" {
			t.Error("nat applied despite router failure")
		}
	}
}

func TestUnknownDependencyRejected(t *testing.T) {
	g := NewGraph()
	if err := g.Add(Resource{ID: "a", Kind: KindNetwork, DependsOn: []string{"ghost"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Order(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCycleDetected(t *testing.T) {
	g := NewGraph()
	err := g.Add(
		Resource{ID: "a", Kind: KindNetwork, DependsOn: []string{"b"}},
		Resource{ID: "b", Kind: KindSubnet, DependsOn: []string{"a"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.Order(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	g := NewGraph()
	if err := g.Add(Resource{ID: "a", Kind: KindNetwork}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Add(Resource{ID: "a", Kind: KindSubnet}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNATCoversAllSubnets(t *testing.T) {
	for _, res := range FabricResources(testFabric()) {
		if res.Kind != KindNAT {
			continue
		}
		spec := res.Spec.(NATSpec)
		if !spec.AllSubnets || !spec.AllRanges {
			t.Errorf("NAT must cover all subnets and ranges, got %+v", spec)
		}
		return
	}
	t.Fatal("no NAT resource declared")
}

func TestPublicInvokerIsSeparateResource(t *testing.T) {
	id := &domain.ExecutionIdentity{
		AccountID:    "deepstack-runner",
		Roles:        []string{"run.developer"},
		PublicInvoke: true,
	}
	resources := IdentityResources(id, "deepstack")

	var bindings, invokers int
	for _, res := range resources {
		switch res.Kind {
		case KindRoleBinding:
			bindings++
		case KindInvokerBinding:
			invokers++
		}
	}
	if bindings != 1 || invokers != 1 {
		t.Errorf("got %d role bindings and %d invoker bindings, want 1 and 1", bindings, invokers)
	}

	id.PublicInvoke = false
	for _, res := range IdentityResources(id, "deepstack") {
		if res.Kind == KindInvokerBinding {
			t.Error("invoker binding declared without opt-in")
		}
	}
}
