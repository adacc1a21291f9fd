// Package manifest is the wire form of a stack: what operators write in
// YAML and what the control-plane API accepts as JSON. Domain types redact
// secret values when serialized, so the manifest keeps its own types and
// converts explicitly.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meridian-platform/stackd/internal/domain"
)

type Stack struct {
	Unit           Unit                  `yaml:"unit" json:"unit"`
	Fabric         Fabric                `yaml:"fabric" json:"fabric"`
	Connector      Connector             `yaml:"connector" json:"connector"`
	Identity       Identity              `yaml:"identity" json:"identity"`
	Repositories   map[string]Repository `yaml:"repositories" json:"repositories"`
	ProxyStableTag string                `yaml:"proxy_stable_tag" json:"proxy_stable_tag"`
}

type Unit struct {
	Name         string      `yaml:"name" json:"name"`
	Project      string      `yaml:"project" json:"project"`
	Region       string      `yaml:"region" json:"region"`
	Ingress      string      `yaml:"ingress" json:"ingress"`
	MinInstances int         `yaml:"min_instances" json:"min_instances"`
	MaxInstances int         `yaml:"max_instances" json:"max_instances"`
	Containers   []Container `yaml:"containers" json:"containers"`
}

type Container struct {
	Role      string   `yaml:"role" json:"role"`
	Image     string   `yaml:"image,omitempty" json:"image,omitempty"`
	CPU       string   `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Memory    string   `yaml:"memory,omitempty" json:"memory,omitempty"`
	Port      int      `yaml:"port" json:"port"`
	Env       []EnvVar `yaml:"env,omitempty" json:"env,omitempty"`
	Probe     Probe    `yaml:"probe" json:"probe"`
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

type EnvVar struct {
	Name   string `yaml:"name" json:"name"`
	Value  string `yaml:"value" json:"value"`
	Secret bool   `yaml:"secret,omitempty" json:"secret,omitempty"`
}

type Probe struct {
	Protocol         string `yaml:"protocol" json:"protocol"`
	Path             string `yaml:"path,omitempty" json:"path,omitempty"`
	Port             int    `yaml:"port" json:"port"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	PeriodSeconds    int    `yaml:"period_seconds" json:"period_seconds"`
	FailureThreshold int    `yaml:"failure_threshold" json:"failure_threshold"`
}

type Fabric struct {
	Name        string   `yaml:"name" json:"name"`
	Region      string   `yaml:"region" json:"region"`
	SubnetCIDR  string   `yaml:"subnet_cidr" json:"subnet_cidr"`
	OtherCIDRs  []string `yaml:"other_cidrs,omitempty" json:"other_cidrs,omitempty"`
	RouterName  string   `yaml:"router_name" json:"router_name"`
	NATName     string   `yaml:"nat_name" json:"nat_name"`
	EgressPorts []int    `yaml:"egress_ports,omitempty" json:"egress_ports,omitempty"`
}

type Connector struct {
	Name         string `yaml:"name" json:"name"`
	MinInstances int    `yaml:"min_instances" json:"min_instances"`
	MaxInstances int    `yaml:"max_instances" json:"max_instances"`
	Egress       string `yaml:"egress" json:"egress"`
}

type Identity struct {
	AccountID    string   `yaml:"account_id" json:"account_id"`
	DisplayName  string   `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Roles        []string `yaml:"roles" json:"roles"`
	PublicInvoke bool     `yaml:"public_invoke" json:"public_invoke"`
}

type Repository struct {
	Project      string `yaml:"project,omitempty" json:"project,omitempty"`
	Region       string `yaml:"region,omitempty" json:"region,omitempty"`
	RepositoryID string `yaml:"repository_id" json:"repository_id"`
}

// Load reads and parses a stack manifest from disk.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Stack, error) {
	var m Stack
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// ToDomain converts the manifest into validated domain types. Repository
// project and region default to the unit's when omitted.
func (m *Stack) ToDomain() (*domain.Stack, error) {
	unit := domain.ServiceUnit{
		Name:         m.Unit.Name,
		Project:      m.Unit.Project,
		Region:       m.Unit.Region,
		Ingress:      domain.IngressPolicy(m.Unit.Ingress),
		MinInstances: m.Unit.MinInstances,
		MaxInstances: m.Unit.MaxInstances,
	}
	if unit.Ingress == "" {
		unit.Ingress = domain.IngressAll
	}
	for _, c := range m.Unit.Containers {
		dc := domain.Container{
			Role:   domain.Role(c.Role),
			Image:  c.Image,
			CPU:    c.CPU,
			Memory: c.Memory,
			Port:   c.Port,
			Probe: domain.StartupProbe{
				Protocol:         domain.ProbeProtocol(c.Probe.Protocol),
				Path:             c.Probe.Path,
				Port:             c.Probe.Port,
				Timeout:          time.Duration(c.Probe.TimeoutSeconds) * time.Second,
				Period:           time.Duration(c.Probe.PeriodSeconds) * time.Second,
				FailureThreshold: c.Probe.FailureThreshold,
			},
		}
		if dc.Probe.Port == 0 {
			dc.Probe.Port = c.Port
		}
		for _, e := range c.Env {
			dc.Env = append(dc.Env, domain.EnvVar{Name: e.Name, Value: e.Value, Secret: e.Secret})
		}
		for _, dep := range c.DependsOn {
			dc.DependsOn = append(dc.DependsOn, domain.Role(dep))
		}
		unit.Containers = append(unit.Containers, dc)
	}

	repos := make(map[domain.Role]domain.RegistryRepository, len(m.Repositories))
	for role, r := range m.Repositories {
		project := r.Project
		if project == "" {
			project = m.Unit.Project
		}
		region := r.Region
		if region == "" {
			region = m.Unit.Region
		}
		repos[domain.Role(role)] = domain.RegistryRepository{
			Project:      project,
			Region:       region,
			RepositoryID: r.RepositoryID,
		}
	}

	stack := &domain.Stack{
		Unit: unit,
		Fabric: domain.NetworkFabric{
			Name:        m.Fabric.Name,
			Region:      m.Fabric.Region,
			SubnetCIDR:  m.Fabric.SubnetCIDR,
			OtherCIDRs:  m.Fabric.OtherCIDRs,
			RouterName:  m.Fabric.RouterName,
			NATName:     m.Fabric.NATName,
			EgressPorts: m.Fabric.EgressPorts,
		},
		Connector: domain.Connector{
			Name:         m.Connector.Name,
			FabricName:   m.Fabric.Name,
			MinInstances: m.Connector.MinInstances,
			MaxInstances: m.Connector.MaxInstances,
			Egress:       domain.EgressPolicy(m.Connector.Egress),
		},
		Identity: domain.ExecutionIdentity{
			AccountID:    m.Identity.AccountID,
			DisplayName:  m.Identity.DisplayName,
			Roles:        m.Identity.Roles,
			PublicInvoke: m.Identity.PublicInvoke,
		},
		Repositories:   repos,
		ProxyStableTag: m.ProxyStableTag,
	}
	if stack.ProxyStableTag == "" {
		stack.ProxyStableTag = "stable"
	}
	if stack.Connector.Egress == "" {
		stack.Connector.Egress = domain.EgressAllTraffic
	}
	if err := stack.Validate(); err != nil {
		return nil, err
	}
	return stack, nil
}
