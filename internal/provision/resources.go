package provision

import (
	"fmt"

	"github.com/meridian-platform/stackd/internal/domain"
)

// Spec payloads handed to the Provider per resource kind.

type SubnetSpec struct {
	Network string
	CIDR    string
}

// NATSpec deliberately spans every subnet and IP range in the network:
// simplicity over fine-grained control, so no container is left without
// egress.
type NATSpec struct {
	Router     string
	AllSubnets bool
	AllRanges  bool
}

// FirewallEgressSpec governs outbound traffic only. Ingress admission is the
// ServiceUnit's own policy, not a network rule.
type FirewallEgressSpec struct {
	Network string
	Ports   []int
}

type ConnectorSpec struct {
	Subnet       string
	MinInstances int
	MaxInstances int
	Egress       domain.EgressPolicy
}

type RepositorySpec struct {
	Project      string
	Region       string
	RepositoryID string
}

type RoleBindingSpec struct {
	Account string
	Role    string
}

// InvokerBindingSpec grants anonymous external invocation. It is its own
// resource so opting into public access stays auditable separately from the
// operational identity's permissions.
type InvokerBindingSpec struct {
	Unit   string
	Member string
}

var defaultEgressPorts = []int{80, 443}

// FabricResources declares the network path a unit egresses through:
// network → subnet → router → NAT, plus the outbound firewall rule.
func FabricResources(f *domain.NetworkFabric) []Resource {
	networkID := f.Name
	subnetID := f.Name + "-subnet"
	ports := f.EgressPorts
	if len(ports) == 0 {
		ports = defaultEgressPorts
	}
	return []Resource{
		{ID: networkID, Kind: KindNetwork, Spec: f.Name},
		{ID: subnetID, Kind: KindSubnet, DependsOn: []string{networkID}, Spec: SubnetSpec{Network: networkID, CIDR: f.SubnetCIDR}},
		{ID: f.RouterName, Kind: KindRouter, DependsOn: []string{networkID}, Spec: f.Name},
		{ID: f.NATName, Kind: KindNAT, DependsOn: []string{f.RouterName, subnetID}, Spec: NATSpec{Router: f.RouterName, AllSubnets: true, AllRanges: true}},
		{ID: f.Name + "-egress", Kind: KindFirewallEgress, DependsOn: []string{networkID}, Spec: FirewallEgressSpec{Network: networkID, Ports: ports}},
	}
}

// ConnectorResource binds a unit to the fabric subnet with its own scaling
// bounds.
func ConnectorResource(c *domain.Connector, f *domain.NetworkFabric) Resource {
	return Resource{
		ID:        c.Name,
		Kind:      KindConnector,
		DependsOn: []string{f.Name + "-subnet"},
		Spec: ConnectorSpec{
			Subnet:       f.Name + "-subnet",
			MinInstances: c.MinInstances,
			MaxInstances: c.MaxInstances,
			Egress:       c.Egress,
		},
	}
}

// RegistryResources declares one image repository per container role.
func RegistryResources(repos map[domain.Role]domain.RegistryRepository) []Resource {
	resources := make([]Resource, 0, len(repos))
	for _, role := range domain.Roles {
		repo, ok := repos[role]
		if !ok {
			continue
		}
		resources = append(resources, Resource{
			ID:   repo.RepositoryID,
			Kind: KindRepository,
			Spec: RepositorySpec{Project: repo.Project, Region: repo.Region, RepositoryID: repo.RepositoryID},
		})
	}
	return resources
}

// IdentityResources declares the execution identity: the account, one binding
// per minimal role, and the explicit public-invoker grant when opted in.
func IdentityResources(id *domain.ExecutionIdentity, unitName string) []Resource {
	resources := []Resource{
		{ID: id.AccountID, Kind: KindServiceAccount, Spec: id.AccountID},
	}
	for i, role := range id.Roles {
		resources = append(resources, Resource{
			ID:        fmt.Sprintf("%s-role-%d", id.AccountID, i),
			Kind:      KindRoleBinding,
			DependsOn: []string{id.AccountID},
			Spec:      RoleBindingSpec{Account: id.AccountID, Role: role},
		})
	}
	if id.PublicInvoke {
		resources = append(resources, Resource{
			ID:        unitName + "-public-invoker",
			Kind:      KindInvokerBinding,
			DependsOn: []string{id.AccountID},
			Spec:      InvokerBindingSpec{Unit: unitName, Member: "allUsers"},
		})
	}
	return resources
}
