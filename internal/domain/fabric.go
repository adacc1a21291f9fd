package domain

import (
	"fmt"
	"net/netip"
)

// EgressPolicy controls which traffic a Connector routes through the fabric.
type EgressPolicy string

const (
	EgressAllTraffic    EgressPolicy = "all-traffic"
	EgressPrivateRanges EgressPolicy = "private-ranges-only"
)

// NetworkFabric is the private network a unit egresses through: network +
// subnet + router + NAT. NAT covers all subnets so every container gets
// outbound access without a public IP of its own.
type NetworkFabric struct {
	Name        string   `json:"name" yaml:"name"`
	Region      string   `json:"region" yaml:"region"`
	SubnetCIDR  string   `json:"subnet_cidr" yaml:"subnet_cidr"`
	OtherCIDRs  []string `json:"other_cidrs,omitempty" yaml:"other_cidrs,omitempty"` // sibling subnets already in the network
	RouterName  string   `json:"router_name" yaml:"router_name"`
	NATName     string   `json:"nat_name" yaml:"nat_name"`
	EgressPorts []int    `json:"egress_ports,omitempty" yaml:"egress_ports,omitempty"` // outbound only; ingress is the unit's concern
}

// Validate checks the fabric invariants, in particular that the subnet CIDR
// does not overlap any sibling subnet in the same network.
func (f *NetworkFabric) Validate() error {
	if err := ValidateResourceName(f.Name); err != nil {
		return err
	}
	prefix, err := netip.ParsePrefix(f.SubnetCIDR)
	if err != nil {
		return fmt.Errorf("%w: subnet cidr %q: %v", ErrInvalidInput, f.SubnetCIDR, err)
	}
	for _, other := range f.OtherCIDRs {
		sibling, err := netip.ParsePrefix(other)
		if err != nil {
			return fmt.Errorf("%w: sibling cidr %q: %v", ErrInvalidInput, other, err)
		}
		if prefix.Overlaps(sibling) {
			return fmt.Errorf("%w: subnet %s overlaps existing subnet %s", ErrInvalidInput, f.SubnetCIDR, other)
		}
	}
	return nil
}

// Connector binds a ServiceUnit to exactly one fabric subnet. Its scaling
// bounds are independent of the unit's: connector capacity is a shared
// network resource, not a per-deploy concern.
type Connector struct {
	Name         string       `json:"name" yaml:"name"`
	FabricName   string       `json:"fabric_name" yaml:"fabric_name"`
	MinInstances int          `json:"min_instances" yaml:"min_instances"`
	MaxInstances int          `json:"max_instances" yaml:"max_instances"`
	Egress       EgressPolicy `json:"egress" yaml:"egress"`
}

func (c *Connector) Validate() error {
	if err := ValidateResourceName(c.Name); err != nil {
		return err
	}
	if c.FabricName == "" {
		return fmt.Errorf("%w: connector requires a fabric", ErrInvalidInput)
	}
	if c.MinInstances < 2 || c.MaxInstances < c.MinInstances {
		return fmt.Errorf("%w: connector instance bounds %d..%d", ErrInvalidInput, c.MinInstances, c.MaxInstances)
	}
	switch c.Egress {
	case EgressAllTraffic, EgressPrivateRanges:
		return nil
	default:
		return fmt.Errorf("%w: unknown egress policy %q", ErrInvalidInput, c.Egress)
	}
}
